package progress

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Option configures a Reporter.
type Option func(*Reporter)

// WithLogger sets the logger used to report contract violations.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Reporter) {
		if logger != nil {
			r.logger = logger
		}
	}
}

type registryEntry struct {
	allStacks bool
	listener  Listener
}

// Reporter fans task lifecycle events out to registered listeners. Events from
// the primary stack reach every listener; events from other stacks only reach
// listeners whose AllStacks returns true.
//
// Listeners are registered during setup. The registry is sealed by the first
// task registration and read without locking afterwards.
type Reporter struct {
	logger   *zap.Logger
	registry []registryEntry
	sealed   atomic.Bool

	primaryOnce sync.Once
	primary     *TaskStack
}

var (
	defaultOnce     sync.Once
	defaultReporter *Reporter
)

// Default returns the process-wide reporter, constructing it on first use.
// Register its listeners before any task starts.
func Default() *Reporter {
	defaultOnce.Do(func() {
		defaultReporter = New()
	})
	return defaultReporter
}

// New constructs a Reporter with no listeners.
func New(opts ...Option) *Reporter {
	r := &Reporter{logger: zap.NewNop()}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Register appends a listener. Registration order is notification order.
// It panics once tracking has started.
func (r *Reporter) Register(l Listener) {
	if r.sealed.Load() {
		r.logger.Error("progress contract violation",
			zap.String("op", "register"),
			zap.Error(ErrRegistryFrozen),
		)
		panic(&ContractError{Op: "register", Err: ErrRegistryFrozen})
	}
	r.registry = append(r.registry, registryEntry{allStacks: l.AllStacks(), listener: l})
}

// Listeners returns the number of registered listeners.
func (r *Reporter) Listeners() int {
	return len(r.registry)
}

// PrimaryStack returns the reporter's single primary stack. Only the
// coordinating goroutine may drive it.
func (r *Reporter) PrimaryStack() *TaskStack {
	r.primaryOnce.Do(func() {
		r.primary = newTaskStack(r, true)
	})
	return r.primary
}

// NewStack returns a fresh non-primary stack for a worker goroutine.
func (r *Reporter) NewStack() *TaskStack {
	return newTaskStack(r, false)
}

// IsPrimary reports whether s is this reporter's primary stack.
func (r *Reporter) IsPrimary(s *TaskStack) bool {
	return s != nil && s.reporter == r && s.primary
}

func (r *Reporter) handleNewTask(t *Task) {
	r.sealed.Store(true)
	primary := t.stack.primary
	for _, e := range r.registry {
		if primary || e.allStacks {
			e.listener.HandleNewTask(t)
		}
	}
}

func (r *Reporter) handleTaskCompleted(t *Task) {
	primary := t.stack.primary
	for _, e := range r.registry {
		if primary || e.allStacks {
			e.listener.HandleTaskCompleted(t)
		}
	}
}

func (r *Reporter) handleTaskAdvancement(t *Task, previousStep string) {
	primary := t.stack.primary
	for _, e := range r.registry {
		if primary || e.allStacks {
			e.listener.HandleTaskAdvancement(t, previousStep)
		}
	}
}
