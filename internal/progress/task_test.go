package progress

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestTaskAdvanceUpdatesState verifies step bookkeeping and the previous step name passed to listeners.
func TestTaskAdvanceUpdatesState(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	stack := newPrimary(rec)

	task := stack.Start("build", WithTotal(3))
	require.Equal(t, int64(-1), task.StepIndex())
	require.Equal(t, "", task.StepName())

	task.AdvanceSingle("compile")
	require.Equal(t, int64(0), task.StepIndex())
	require.Equal(t, "compile", task.StepName())
	require.True(t, task.CurrentStepHasSingleSubtask())

	task.Advance("link")
	require.Equal(t, int64(1), task.StepIndex())
	require.False(t, task.CurrentStepHasSingleSubtask())
	task.Close()

	require.Equal(t, []string{
		"new build",
		`advance build 0 "compile"<-""`,
		`advance build 1 "link"<-"compile"`,
		"done build",
	}, rec.Events())
}

// TestTaskAdvanceBeyondTotalPanics checks that the (T+1)-th advance is a contract violation.
func TestTaskAdvanceBeyondTotalPanics(t *testing.T) {
	t.Parallel()

	stack := newPrimary()
	task := stack.Start("bounded", WithTotal(2))
	defer task.Close()

	task.Advance("one")
	task.Advance("two")
	require.Equal(t, int64(1), task.StepIndex())
	requireViolation(t, ErrStepOverflow, func() { task.Advance("three") })
	require.Equal(t, int64(1), task.StepIndex())
}

// TestTaskUnboundedAdvances ensures tasks without a total never overflow.
func TestTaskUnboundedAdvances(t *testing.T) {
	t.Parallel()

	stack := newPrimary()
	task := stack.Start("open-ended")
	defer task.Close()

	for i := 0; i < 100; i++ {
		task.Advance("step")
	}
	total, bounded := task.TotalSteps()
	require.False(t, bounded)
	require.Zero(t, total)
	require.Equal(t, int64(99), task.StepIndex())
}

// TestTaskZeroTotalRejectsAnyAdvance covers the degenerate empty task.
func TestTaskZeroTotalRejectsAnyAdvance(t *testing.T) {
	t.Parallel()

	stack := newPrimary()
	task := stack.Start("empty", WithTotal(0))
	defer task.Close()

	requireViolation(t, ErrStepOverflow, func() { task.Advance("first") })
}

// TestTaskCompleteIsIdempotent ensures Close after Complete emits a single completion.
func TestTaskCompleteIsIdempotent(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	stack := newPrimary(rec)

	task := stack.Start("once")
	task.Complete()
	task.Complete()
	task.Close()

	require.True(t, task.Completed())
	require.Equal(t, []string{"new once", "done once"}, rec.Events())
	require.Zero(t, stack.Len())
}

// TestTaskCloseWithoutCompleteNotifiesOnce mirrors scope exit without an explicit Complete.
func TestTaskCloseWithoutCompleteNotifiesOnce(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	stack := newPrimary(rec)

	func() {
		task := stack.Start("scoped")
		defer task.Close()
		task.Advance("work")
	}()

	require.Equal(t, []string{"new scoped", `advance scoped 0 "work"<-""`, "done scoped"}, rec.Events())
}

// TestTaskCloseOnPanicPath verifies deferred Close runs when the unit of work panics.
func TestTaskCloseOnPanicPath(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	stack := newPrimary(rec)

	require.Panics(t, func() {
		task := stack.Start("doomed")
		defer task.Close()
		panic("unit failed")
	})
	require.Equal(t, []string{"new doomed", "done doomed"}, rec.Events())
	require.Zero(t, stack.Len())
}

// TestTaskIndexReflectsNesting checks Index and Depth for nested tasks.
func TestTaskIndexReflectsNesting(t *testing.T) {
	t.Parallel()

	stack := newPrimary()
	outer := stack.Start("outer")
	outer.Advance("a")
	inner := stack.Start("inner")

	require.Equal(t, 0, outer.Index())
	require.Equal(t, 1, inner.Index())
	require.Equal(t, 1, inner.Depth())
	require.True(t, outer.SubtaskCreated())
	require.Same(t, inner, stack.Top())

	inner.Close()
	outer.Close()
	require.Equal(t, -1, inner.Depth())
	requireViolation(t, ErrTaskNotInStack, func() { inner.Index() })
}

// TestStartUsesContextStack ensures the package-level Start honors the stack carried by ctx.
func TestStartUsesContextStack(t *testing.T) {
	t.Parallel()

	stack := newPrimary()
	ctx := WithStack(context.Background(), stack)

	task := Start(ctx, "from-ctx")
	defer task.Close()
	require.Same(t, stack, task.Stack())
	require.True(t, task.Primary())
	require.Equal(t, 1, stack.Len())
}

// TestEndToEndBuildScenario walks the nested build trace on one stack.
func TestEndToEndBuildScenario(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	stack := newPrimary(rec)

	build := stack.Start("build", WithTotal(2))
	build.Advance("compile")
	require.Equal(t, int64(0), build.StepIndex())

	unit := stack.Start("compile-unit", WithTotal(1))
	unit.AdvanceSingle("parse")
	unit.Close()

	build.Advance("link")
	require.Equal(t, int64(1), build.StepIndex())
	requireViolation(t, ErrStepOverflow, func() { build.Advance("package") })
	build.Close()

	require.Equal(t, []string{
		"new build",
		`advance build 0 "compile"<-""`,
		"new compile-unit",
		`advance compile-unit 0 "parse"<-""`,
		"done compile-unit",
		`advance build 1 "link"<-"compile"`,
		"done build",
	}, rec.Events())
}
