package progress

import "context"

// TaskOnSet is a task whose steps are a known set of elements fed by an
// external, partially unpredictable sequence. Advancing with an element
// outside the set silences the whole stack until the next expected element, so
// retries and skipped items neither count as steps nor reach listeners.
type TaskOnSet[V comparable] struct {
	task      *Task
	expected  map[V]struct{}
	suspended bool
}

// StartOnSet creates a TaskOnSet on s with one step per element. Elements must
// be distinct.
func StartOnSet[V comparable](s *TaskStack, name string, elements []V) *TaskOnSet[V] {
	expected := make(map[V]struct{}, len(elements))
	for _, elem := range elements {
		if _, dup := expected[elem]; dup {
			s.violate("start", nil, ErrDuplicateElement)
		}
		expected[elem] = struct{}{}
	}
	return &TaskOnSet[V]{
		task:     s.Start(name, WithTotal(int64(len(expected)))),
		expected: expected,
	}
}

// StartOnSetContext is StartOnSet on the stack carried by ctx.
func StartOnSetContext[V comparable](ctx context.Context, name string, elements []V) *TaskOnSet[V] {
	return StartOnSet(StackFor(ctx), name, elements)
}

// Advance moves to the next step if elem is expected; otherwise it suspends
// tracking until an expected element shows up.
func (t *TaskOnSet[V]) Advance(elem V, step string) {
	t.advance(elem, step, false)
}

// AdvanceSingle is Advance declaring that the step spawns at most one subtask.
func (t *TaskOnSet[V]) AdvanceSingle(elem V, step string) {
	t.advance(elem, step, true)
}

func (t *TaskOnSet[V]) advance(elem V, step string, singleSubtask bool) {
	if _, ok := t.expected[elem]; !ok {
		if !t.suspended {
			t.task.stack.SuspendTracking()
			t.suspended = true
		}
		return
	}
	t.resume()
	t.task.advance(step, singleSubtask)
}

func (t *TaskOnSet[V]) resume() {
	if t.suspended {
		t.task.stack.ResumeTracking()
		t.suspended = false
	}
}

// Complete resumes tracking if needed and completes the underlying task.
func (t *TaskOnSet[V]) Complete() {
	t.resume()
	t.task.Complete()
}

// Close ends the task's scope.
func (t *TaskOnSet[V]) Close() {
	t.Complete()
}

// Expects reports whether elem belongs to the expected set.
func (t *TaskOnSet[V]) Expects(elem V) bool {
	_, ok := t.expected[elem]
	return ok
}

// Suspended reports whether the last element was unexpected.
func (t *TaskOnSet[V]) Suspended() bool { return t.suspended }

// Task returns the underlying task.
func (t *TaskOnSet[V]) Task() *Task { return t.task }

// Name returns the task name.
func (t *TaskOnSet[V]) Name() string { return t.task.Name() }

// StepName returns the current step name.
func (t *TaskOnSet[V]) StepName() string { return t.task.StepName() }

// StepIndex counts expected elements seen so far, minus one.
func (t *TaskOnSet[V]) StepIndex() int64 { return t.task.StepIndex() }

// TotalSteps returns the size of the expected set.
func (t *TaskOnSet[V]) TotalSteps() int64 {
	total, _ := t.task.TotalSteps()
	return total
}

// Completed reports whether the task completed.
func (t *TaskOnSet[V]) Completed() bool { return t.task.Completed() }
