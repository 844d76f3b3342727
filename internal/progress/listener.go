package progress

// Listener observes task lifecycle events.
//
// Every callback receives a task that is the top of its stack at call time.
// Listeners whose AllStacks returns true may be called by several goroutines
// in parallel and must synchronize their own state; the others only see the
// primary stack. A panic raised by a listener propagates to the task
// operation that triggered it.
type Listener interface {
	// AllStacks is read once at registration. It must be a constant of the
	// listener type.
	AllStacks() bool
	HandleNewTask(t *Task)
	HandleTaskCompleted(t *Task)
	HandleTaskAdvancement(t *Task, previousStep string)
}

// ListenerFuncs adapts plain functions to the Listener interface. Nil
// callbacks are skipped.
type ListenerFuncs struct {
	All       bool
	OnNew     func(t *Task)
	OnDone    func(t *Task)
	OnAdvance func(t *Task, previousStep string)
}

// AllStacks implements Listener.
func (f ListenerFuncs) AllStacks() bool { return f.All }

// HandleNewTask implements Listener.
func (f ListenerFuncs) HandleNewTask(t *Task) {
	if f.OnNew != nil {
		f.OnNew(t)
	}
}

// HandleTaskCompleted implements Listener.
func (f ListenerFuncs) HandleTaskCompleted(t *Task) {
	if f.OnDone != nil {
		f.OnDone(t)
	}
}

// HandleTaskAdvancement implements Listener.
func (f ListenerFuncs) HandleTaskAdvancement(t *Task, previousStep string) {
	if f.OnAdvance != nil {
		f.OnAdvance(t, previousStep)
	}
}
