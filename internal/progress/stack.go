package progress

import (
	"go.uber.org/zap"
)

// TaskStack holds the tasks started but not completed by one goroutine,
// outermost first. A stack is never shared: hand a goroutine its own stack with
// Fork instead.
type TaskStack struct {
	reporter        *Reporter
	primary         bool
	suspendRequests int
	tasks           []*Task
}

func newTaskStack(r *Reporter, primary bool) *TaskStack {
	return &TaskStack{
		reporter: r,
		primary:  primary,
		tasks:    make([]*Task, 0, 4),
	}
}

// Start creates a task on this stack and registers it.
func (s *TaskStack) Start(name string, opts ...TaskOption) *Task {
	t := newTask(s, name, opts)
	s.register(t)
	return t
}

// Reporter returns the reporter notified by this stack.
func (s *TaskStack) Reporter() *Reporter { return s.reporter }

// Primary reports whether this is the reporter's primary stack.
func (s *TaskStack) Primary() bool { return s.primary }

// Len returns the number of tracked tasks.
func (s *TaskStack) Len() int { return len(s.tasks) }

// Top returns the innermost tracked task, or nil.
func (s *TaskStack) Top() *Task {
	if len(s.tasks) == 0 {
		return nil
	}
	return s.tasks[len(s.tasks)-1]
}

// Tasks returns a copy of the tracked tasks, outermost first.
func (s *TaskStack) Tasks() []*Task {
	return append([]*Task(nil), s.tasks...)
}

// Suspended reports whether notification is currently silenced.
func (s *TaskStack) Suspended() bool { return s.suspendRequests > 0 }

// SuspendTracking silences registration and notification until the matching
// ResumeTracking. Calls nest.
func (s *TaskStack) SuspendTracking() {
	s.suspendRequests++
}

// ResumeTracking undoes one SuspendTracking.
func (s *TaskStack) ResumeTracking() {
	if s.suspendRequests == 0 {
		s.violate("resume", nil, ErrUnbalancedResume)
	}
	s.suspendRequests--
}

// register pushes t unless the stack is suspended, in which case t stays
// untracked for its whole life.
func (s *TaskStack) register(t *Task) {
	if s.Suspended() {
		return
	}
	if top := s.Top(); top != nil {
		if top.singleSubtask && top.subtaskCreated {
			s.violate("register", t, ErrSecondSubtask)
		}
		top.SetSubtaskCreated()
	}
	s.tasks = append(s.tasks, t)
	t.tracked = true

	s.reporter.handleNewTask(t)
}

func (s *TaskStack) unregister(t *Task) {
	if s.Suspended() || !t.tracked {
		return
	}
	if s.Top() != t {
		s.violate("complete", t, ErrNotTopOfStack)
	}
	s.reporter.handleTaskCompleted(t)
	s.tasks[len(s.tasks)-1] = nil
	s.tasks = s.tasks[:len(s.tasks)-1]
	t.tracked = false
}

func (s *TaskStack) advance(t *Task, previousStep string) {
	if s.Suspended() || !t.tracked {
		return
	}
	if s.Top() != t {
		s.violate("advance", t, ErrNotTopOfStack)
	}
	s.reporter.handleTaskAdvancement(t, previousStep)
}

func (s *TaskStack) violate(op string, t *Task, err error) {
	cerr := &ContractError{Op: op, Err: err}
	fields := []zap.Field{
		zap.String("op", op),
		zap.Bool("primary", s.primary),
		zap.Int("depth", len(s.tasks)),
		zap.Error(err),
	}
	if t != nil {
		cerr.Task = t.name
		fields = append(fields, zap.String("task", t.name), zap.Int64("step_index", t.stepIndex))
	}
	s.reporter.logger.Error("progress contract violation", fields...)
	panic(cerr)
}
