// Package memory keeps task run history in-memory for development and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/taskprogress/internal/store"
)

// RunStore provides an in-memory implementation of store.RunRepository.
type RunStore struct {
	mu   sync.RWMutex
	runs map[uuid.UUID]store.TaskRun
}

// NewRunStore constructs a RunStore.
func NewRunStore() *RunStore {
	return &RunStore{runs: make(map[uuid.UUID]store.TaskRun)}
}

// UpsertRunStart records a running task; a repeated start for the same ID is ignored.
func (s *RunStore) UpsertRunStart(_ context.Context, run store.TaskRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.ID]; exists {
		return nil
	}
	run.Status = store.RunRunning
	run.FinishedAt = nil
	if run.UpdatedAt.IsZero() {
		run.UpdatedAt = run.StartedAt
	}
	s.runs[run.ID] = run
	return nil
}

// RecordSteps adds deltaSteps to the run and remembers the latest step.
func (s *RunStore) RecordSteps(
	_ context.Context,
	runID uuid.UUID,
	deltaSteps int64,
	lastStep string,
	at time.Time,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return store.ErrNotFound
	}
	run.Steps += deltaSteps
	run.LastStep = lastStep
	if at.After(run.UpdatedAt) {
		run.UpdatedAt = at
	}
	s.runs[runID] = run
	return nil
}

// CompleteRun marks the run completed. Completing twice keeps the first timestamp.
func (s *RunStore) CompleteRun(_ context.Context, runID uuid.UUID, finishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return store.ErrNotFound
	}
	if run.Status == store.RunCompleted {
		return nil
	}
	run.Status = store.RunCompleted
	run.FinishedAt = pointerTime(finishedAt)
	if finishedAt.After(run.UpdatedAt) {
		run.UpdatedAt = finishedAt
	}
	s.runs[runID] = run
	return nil
}

// GetRun fetches a run by ID.
func (s *RunStore) GetRun(_ context.Context, runID uuid.UUID) (store.TaskRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	if !ok {
		return store.TaskRun{}, store.ErrNotFound
	}
	return cloneRun(run), nil
}

// ListRuns returns runs most recently started first, filtered by status when set.
func (s *RunStore) ListRuns(
	_ context.Context,
	status *store.RunStatus,
	limit,
	offset int,
) ([]store.TaskRun, error) {
	s.mu.RLock()
	out := make([]store.TaskRun, 0, len(s.runs))
	for _, run := range s.runs {
		if status != nil && run.Status != *status {
			continue
		}
		out = append(out, cloneRun(run))
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if offset < 0 {
		offset = 0
	}
	if offset >= len(out) {
		return []store.TaskRun{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func cloneRun(run store.TaskRun) store.TaskRun {
	if run.FinishedAt != nil {
		run.FinishedAt = pointerTime(*run.FinishedAt)
	}
	if run.Total != nil {
		total := *run.Total
		run.Total = &total
	}
	return run
}

func pointerTime(t time.Time) *time.Time {
	ts := t
	return &ts
}
