package progress

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// TestReporterNotifiesInRegistrationOrder checks listeners fire in the order they were registered.
func TestReporterNotifiesInRegistrationOrder(t *testing.T) {
	t.Parallel()

	var order []string
	r := New()
	for _, name := range []string{"first", "second", "third"} {
		r.Register(ListenerFuncs{OnNew: func(*Task) { order = append(order, name) }})
	}
	require.Equal(t, 3, r.Listeners())

	task := r.PrimaryStack().Start("t")
	task.Close()
	require.Equal(t, []string{"first", "second", "third"}, order)
}

// TestReporterRegisterAfterTrackingPanics verifies the registry is sealed by the first task.
func TestReporterRegisterAfterTrackingPanics(t *testing.T) {
	t.Parallel()

	r := New()
	r.Register(&recorder{})
	task := r.PrimaryStack().Start("t")
	task.Close()

	requireViolation(t, ErrRegistryFrozen, func() { r.Register(&recorder{}) })
	require.Equal(t, 1, r.Listeners())
}

// TestReporterPrimaryStackIsSingleton ensures PrimaryStack always returns the same primary stack.
func TestReporterPrimaryStackIsSingleton(t *testing.T) {
	t.Parallel()

	r := New()
	primary := r.PrimaryStack()
	require.Same(t, primary, r.PrimaryStack())
	require.True(t, r.IsPrimary(primary))
	require.True(t, primary.Primary())

	worker := r.NewStack()
	require.False(t, r.IsPrimary(worker))
	require.False(t, New().IsPrimary(primary))
	require.Same(t, r, worker.Reporter())
}

// TestReporterFiltersWorkerEvents drives a primary and a worker goroutine and checks delivery per listener kind.
func TestReporterFiltersWorkerEvents(t *testing.T) {
	t.Parallel()

	primaryOnly := &recorder{}
	everything := &recorder{all: true}
	r := New()
	r.Register(primaryOnly)
	r.Register(everything)

	ctx := WithStack(context.Background(), r.PrimaryStack())
	main := Start(ctx, "main", WithTotal(1))

	var wg sync.WaitGroup
	wg.Add(1)
	go func(ctx context.Context) {
		defer wg.Done()
		w := Start(ctx, "worker", WithTotal(2))
		defer w.Close()
		w.Advance("w1")
		w.Advance("w2")
	}(Fork(ctx))
	wg.Wait()

	main.Advance("m1")
	main.Close()

	require.Equal(t, []string{
		"new main",
		`advance main 0 "m1"<-""`,
		"done main",
	}, primaryOnly.Events())

	all := everything.Events()
	require.Len(t, all, 7)
	require.Equal(t, []string{
		"new worker",
		`advance worker 0 "w1"<-""`,
		`advance worker 1 "w2"<-"w1"`,
		"done worker",
	}, filterPrefix(all, "worker"))
	require.Equal(t, []string{
		"new main",
		`advance main 0 "m1"<-""`,
		"done main",
	}, filterPrefix(all, "main"))
}

// TestReporterConcurrentWorkers runs many worker stacks in parallel against an all-stacks listener.
func TestReporterConcurrentWorkers(t *testing.T) {
	t.Parallel()

	everything := &recorder{all: true}
	primaryOnly := &recorder{}
	r := New()
	r.Register(everything)
	r.Register(primaryOnly)
	root := WithStack(context.Background(), r.PrimaryStack())

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(ctx context.Context) {
			defer wg.Done()
			task := Start(ctx, "unit", WithTotal(3))
			defer task.Close()
			for j := 0; j < 3; j++ {
				task.Advance("step")
				if depth := StackFor(ctx).Len(); depth != 1 {
					t.Errorf("worker stack depth = %d, want 1", depth)
				}
			}
		}(Fork(root))
	}
	wg.Wait()

	require.Len(t, everything.Events(), workers*5)
	require.Empty(t, primaryOnly.Events())
}

// TestReporterLogsViolations ensures contract violations are logged before panicking.
func TestReporterLogsViolations(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.ErrorLevel)
	r := New(WithLogger(zap.New(core)))
	stack := r.PrimaryStack()

	requireViolation(t, ErrUnbalancedResume, stack.ResumeTracking)
	require.Equal(t, 1, logs.FilterMessage("progress contract violation").Len())
}

// TestListenerPanicPropagates verifies a failing listener surfaces at the triggering call.
func TestListenerPanicPropagates(t *testing.T) {
	t.Parallel()

	r := New()
	r.Register(ListenerFuncs{OnAdvance: func(*Task, string) { panic("listener broke") }})
	task := r.PrimaryStack().Start("t")
	defer task.Close()

	require.PanicsWithValue(t, "listener broke", func() { task.Advance("boom") })
}

// TestForkWithoutStackUsesDefaultReporter checks the fallback to the default reporter.
func TestForkWithoutStackUsesDefaultReporter(t *testing.T) {
	t.Parallel()

	require.Same(t, Default().PrimaryStack(), StackFor(context.Background()))
	forked, ok := StackFromContext(Fork(context.Background()))
	require.True(t, ok)
	require.False(t, forked.Primary())
	require.Same(t, Default(), forked.Reporter())
}

func filterPrefix(events []string, name string) []string {
	var out []string
	for _, evt := range events {
		switch evt {
		case "new " + name, "done " + name:
			out = append(out, evt)
			continue
		}
		if strings.HasPrefix(evt, "advance "+name+" ") {
			out = append(out, evt)
		}
	}
	return out
}
