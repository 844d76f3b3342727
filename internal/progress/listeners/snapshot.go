package listeners

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/taskprogress/internal/progress"
)

// Clock supplies task start timestamps.
type Clock interface {
	Now() time.Time
}

// TaskSnapshot is a copy of one active task's state.
type TaskSnapshot struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Step      string    `json:"step"`
	StepIndex int64     `json:"step_index"`
	Total     int64     `json:"total"`
	Depth     int       `json:"depth"`
	StartedAt time.Time `json:"started_at"`
}

// StackSnapshot lists the active tasks of one stack, outermost first.
type StackSnapshot struct {
	Stack   int            `json:"stack"`
	Primary bool           `json:"primary"`
	Tasks   []TaskSnapshot `json:"tasks"`
}

type stackState struct {
	number  int
	primary bool
	tasks   []TaskSnapshot
}

// SnapshotListener tracks active tasks on every stack. Callbacks arrive from
// many goroutines, so all state is copied in under the mutex and read out as
// copies.
type SnapshotListener struct {
	clock Clock

	mu     sync.Mutex
	next   int
	stacks map[*progress.TaskStack]*stackState
}

// NewSnapshotListener builds an empty listener. A nil clock uses time.Now in UTC.
func NewSnapshotListener(clock Clock) *SnapshotListener {
	return &SnapshotListener{clock: clock, stacks: make(map[*progress.TaskStack]*stackState)}
}

// AllStacks implements progress.Listener.
func (*SnapshotListener) AllStacks() bool { return true }

// HandleNewTask implements progress.Listener.
func (l *SnapshotListener) HandleNewTask(t *progress.Task) {
	snap := snapshotOf(t)
	snap.StartedAt = l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	st, ok := l.stacks[t.Stack()]
	if !ok {
		l.next++
		st = &stackState{number: l.next, primary: t.Primary()}
		l.stacks[t.Stack()] = st
	}
	st.tasks = append(st.tasks, snap)
}

// HandleTaskCompleted implements progress.Listener.
func (l *SnapshotListener) HandleTaskCompleted(t *progress.Task) {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, ok := l.stacks[t.Stack()]
	if !ok {
		return
	}
	for i := len(st.tasks) - 1; i >= 0; i-- {
		if st.tasks[i].ID == t.ID() {
			st.tasks = append(st.tasks[:i], st.tasks[i+1:]...)
			break
		}
	}
	if len(st.tasks) == 0 {
		delete(l.stacks, t.Stack())
	}
}

// HandleTaskAdvancement implements progress.Listener.
func (l *SnapshotListener) HandleTaskAdvancement(t *progress.Task, _ string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, ok := l.stacks[t.Stack()]
	if !ok {
		return
	}
	for i := range st.tasks {
		if st.tasks[i].ID == t.ID() {
			st.tasks[i].Step = t.StepName()
			st.tasks[i].StepIndex = t.StepIndex()
			return
		}
	}
}

// Snapshot returns the active stacks, primary first then in first-seen order.
func (l *SnapshotListener) Snapshot() []StackSnapshot {
	l.mu.Lock()
	out := make([]StackSnapshot, 0, len(l.stacks))
	for _, st := range l.stacks {
		tasks := make([]TaskSnapshot, len(st.tasks))
		copy(tasks, st.tasks)
		out = append(out, StackSnapshot{Stack: st.number, Primary: st.primary, Tasks: tasks})
	}
	l.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Primary != out[j].Primary {
			return out[i].Primary
		}
		return out[i].Stack < out[j].Stack
	})
	return out
}

// Active counts tracked tasks across all stacks.
func (l *SnapshotListener) Active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, st := range l.stacks {
		n += len(st.tasks)
	}
	return n
}

func (l *SnapshotListener) now() time.Time {
	if l.clock == nil {
		return time.Now().UTC()
	}
	return l.clock.Now()
}

func snapshotOf(t *progress.Task) TaskSnapshot {
	total, bounded := t.TotalSteps()
	if !bounded {
		total = -1
	}
	return TaskSnapshot{
		ID:        t.ID(),
		Name:      t.Name(),
		Step:      t.StepName(),
		StepIndex: t.StepIndex(),
		Total:     total,
		Depth:     t.Depth(),
	}
}
