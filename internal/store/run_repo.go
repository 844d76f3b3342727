// Package store declares interfaces for persisting task run history.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound signals that the requested record does not exist.
var ErrNotFound = errors.New("task run not found")

// RunStatus mirrors the task_runs status column.
type RunStatus string

// Task run statuses persisted in task_runs.status.
const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
)

// TaskRun models one row of task_runs: an audit record of a task observed by
// the progress hub. It is history, not resumable state.
type TaskRun struct {
	// ID is the task's UUID.
	ID uuid.UUID
	// Name is the task display name.
	Name string
	// Primary is true for tasks driven by the coordinating goroutine.
	Primary bool
	// Depth is the nesting level when the task started.
	Depth int
	// StartedAt captures when the task registered.
	StartedAt time.Time
	// FinishedAt is nil until the task completes.
	FinishedAt *time.Time
	// Status is running/completed.
	Status RunStatus
	// Steps counts observed advancements.
	Steps int64
	// Total is the declared step count, nil when unbounded.
	Total *int64
	// LastStep is the most recent step name.
	LastStep string
	// UpdatedAt is the timestamp of the latest change.
	UpdatedAt time.Time
}

// RunRepository persists task run history.
type RunRepository interface {
	// UpsertRunStart inserts the run in running state; repeats are ignored.
	UpsertRunStart(ctx context.Context, run TaskRun) error
	// RecordSteps adds deltaSteps advancements and the latest step name.
	RecordSteps(ctx context.Context, runID uuid.UUID, deltaSteps int64, lastStep string, at time.Time) error
	// CompleteRun marks the run completed.
	CompleteRun(ctx context.Context, runID uuid.UUID, finishedAt time.Time) error

	// GetRun loads a single run or returns ErrNotFound.
	GetRun(ctx context.Context, runID uuid.UUID) (TaskRun, error)
	// ListRuns returns runs filtered by optional status plus limit/offset,
	// most recently started first.
	ListRuns(ctx context.Context, status *RunStatus, limit, offset int) ([]TaskRun, error)
}
