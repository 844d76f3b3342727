package progress

import (
	"context"

	"github.com/google/uuid"
)

const noStep int64 = -1

// TaskOption customizes a Task at creation.
type TaskOption func(*Task)

// WithTotal bounds the task to n steps; Advance may be called at most n times.
func WithTotal(n int64) TaskOption {
	return func(t *Task) {
		t.total = n
		t.bounded = true
	}
}

// Task tracks one nested unit of work. It is created by Start, driven only by
// the goroutine owning its stack, and must be closed when the unit ends:
//
//	task := progress.Start(ctx, "build", progress.WithTotal(2))
//	defer task.Close()
type Task struct {
	id    uuid.UUID
	stack *TaskStack

	name      string
	stepName  string
	stepIndex int64
	total     int64
	bounded   bool

	subtaskCreated bool
	singleSubtask  bool
	completed      bool
	tracked        bool
}

// Start creates a task on the stack carried by ctx and registers it.
func Start(ctx context.Context, name string, opts ...TaskOption) *Task {
	return StackFor(ctx).Start(name, opts...)
}

func newTask(stack *TaskStack, name string, opts []TaskOption) *Task {
	t := &Task{
		id:        newTaskID(),
		stack:     stack,
		name:      name,
		stepIndex: noStep,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

func newTaskID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}

// ID uniquely identifies the task in emitted events.
func (t *Task) ID() uuid.UUID { return t.id }

// Name returns the display name given at creation.
func (t *Task) Name() string { return t.name }

// StepName returns the name of the step in progress.
func (t *Task) StepName() string { return t.stepName }

// StepIndex returns -1 before the first Advance, the index of the last
// initiated step otherwise.
func (t *Task) StepIndex() int64 { return t.stepIndex }

// TotalSteps returns the declared total and whether one was declared.
func (t *Task) TotalSteps() (int64, bool) { return t.total, t.bounded }

// SubtaskCreated reports whether the current step spawned a nested task.
func (t *Task) SubtaskCreated() bool { return t.subtaskCreated }

// CurrentStepHasSingleSubtask reports whether the current step allows at most
// one nested task.
func (t *Task) CurrentStepHasSingleSubtask() bool { return t.singleSubtask }

// Completed reports whether Complete has run.
func (t *Task) Completed() bool { return t.completed }

// Stack returns the stack the task was created on.
func (t *Task) Stack() *TaskStack { return t.stack }

// Primary reports whether the task lives on the reporter's primary stack.
func (t *Task) Primary() bool { return t.stack.primary }

// Index returns the task's position in its stack, 0 being the outermost.
func (t *Task) Index() int {
	for i, candidate := range t.stack.tasks {
		if candidate == t {
			return i
		}
	}
	t.stack.violate("index", t, ErrTaskNotInStack)
	return -1
}

// Depth is the position of a tracked task, or -1 for one created while the
// stack was suspended.
func (t *Task) Depth() int {
	if !t.tracked {
		return -1
	}
	return t.Index()
}

// Advance starts the next step.
func (t *Task) Advance(step string) {
	t.advance(step, false)
}

// AdvanceSingle starts the next step, declaring that it spawns at most one
// nested task.
func (t *Task) AdvanceSingle(step string) {
	t.advance(step, true)
}

func (t *Task) advance(step string, singleSubtask bool) {
	next := t.stepIndex + 1
	if t.bounded && next >= t.total {
		t.stack.violate("advance", t, ErrStepOverflow)
	}
	t.stepIndex = next
	previous := t.stepName
	t.stepName = step
	t.subtaskCreated = false
	t.singleSubtask = singleSubtask

	t.stack.advance(t, previous)
}

// SetSubtaskCreated records that the current step spawned a nested task.
func (t *Task) SetSubtaskCreated() {
	t.subtaskCreated = true
}

// Complete unregisters the task. Only the first call has an effect.
func (t *Task) Complete() {
	if t.completed {
		return
	}
	t.completed = true
	t.stack.unregister(t)
}

// Close ends the task's scope, completing it if needed.
func (t *Task) Close() {
	t.Complete()
}
