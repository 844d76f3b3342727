package progress

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// recorder is an all-purpose Listener capturing callbacks as strings.
type recorder struct {
	all    bool
	mu     sync.Mutex
	events []string
}

func (r *recorder) AllStacks() bool { return r.all }

func (r *recorder) HandleNewTask(t *Task) {
	r.add(fmt.Sprintf("new %s", t.Name()))
}

func (r *recorder) HandleTaskCompleted(t *Task) {
	r.add(fmt.Sprintf("done %s", t.Name()))
}

func (r *recorder) HandleTaskAdvancement(t *Task, previousStep string) {
	r.add(fmt.Sprintf("advance %s %d %q<-%q", t.Name(), t.StepIndex(), t.StepName(), previousStep))
}

func (r *recorder) add(evt string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func requireViolation(t *testing.T, want error, fn func()) {
	t.Helper()
	var got any
	func() {
		defer func() { got = recover() }()
		fn()
	}()
	require.NotNil(t, got, "expected a contract violation")
	err, ok := got.(error)
	require.True(t, ok, "panic value %v is not an error", got)
	var cerr *ContractError
	require.True(t, errors.As(err, &cerr), "panic value %v is not a ContractError", err)
	require.ErrorIs(t, err, want)
}

func newPrimary(listeners ...Listener) *TaskStack {
	r := New()
	for _, l := range listeners {
		r.Register(l)
	}
	return r.PrimaryStack()
}
