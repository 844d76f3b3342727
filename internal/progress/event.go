package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind denotes the lifecycle transition represented by an Event.
type Kind string

// Supported event kinds.
const (
	KindNew     Kind = "TASK_NEW"
	KindAdvance Kind = "TASK_ADVANCE"
	KindDone    Kind = "TASK_DONE"
)

// Event is a detached record of one listener callback, safe to hand to other
// goroutines after the task has moved on.
type Event struct {
	// TaskID identifies the task using the 16-byte UUID form.
	TaskID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Kind denotes which transition occurred.
	Kind Kind
	// Task is the task display name.
	Task string
	// Step is the step in progress after the transition.
	Step string
	// PreviousStep is the step that just ended (advance only).
	PreviousStep string
	// StepIndex is the task's step index after the transition.
	StepIndex int64
	// Total is the declared step count, or -1 when unbounded.
	Total int64
	// Depth is the task's position in its stack.
	Depth int
	// Primary is true when the task lives on the primary stack.
	Primary bool
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.TaskID == [16]byte{} {
		return errors.New("task id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Kind {
	case KindNew, KindDone:
	case KindAdvance:
		if e.StepIndex < 0 {
			return errors.New("advance requires a step index >= 0")
		}
	default:
		return fmt.Errorf("unknown kind %q", e.Kind)
	}
	if e.Total >= 0 && e.StepIndex >= e.Total {
		return fmt.Errorf("step index %d exceeds total %d", e.StepIndex, e.Total)
	}
	return nil
}

// TaskUUID converts the binary task ID to uuid.UUID for repositories.
func (e Event) TaskUUID() uuid.UUID {
	return uuid.UUID(e.TaskID)
}

// NewEvent snapshots t for the given transition.
func NewEvent(kind Kind, t *Task, previousStep string, ts time.Time) Event {
	total, bounded := t.TotalSteps()
	if !bounded {
		total = -1
	}
	return Event{
		TaskID:       t.ID(),
		TS:           ts,
		Kind:         kind,
		Task:         t.Name(),
		Step:         t.StepName(),
		PreviousStep: previousStep,
		StepIndex:    t.StepIndex(),
		Total:        total,
		Depth:        t.Depth(),
		Primary:      t.Primary(),
	}
}
