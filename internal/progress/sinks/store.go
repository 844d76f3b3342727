package sinks

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/taskprogress/internal/progress"
	"github.com/JakeFAU/taskprogress/internal/store"
)

// StoreSink persists task run history via a store.RunRepository. It collapses
// advancements per task within a batch to reduce write amplification.
type StoreSink struct {
	repo   store.RunRepository
	logger *zap.Logger
}

// NewStoreSink constructs a StoreSink for the provided repository.
func NewStoreSink(repo store.RunRepository, logger *zap.Logger) *StoreSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreSink{repo: repo, logger: logger}
}

// Consume writes starts immediately, folds advancements into one delta per
// task, and applies completions last so a run never finishes before its final
// step count lands. Repository errors are returned wrapped.
func (s *StoreSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.repo == nil {
		return nil
	}
	deltas := make(map[uuid.UUID]*stepDelta)
	order := make([]uuid.UUID, 0, len(batch))
	var completions []progress.Event

	for _, evt := range batch {
		switch evt.Kind {
		case progress.KindNew:
			if err := s.repo.UpsertRunStart(ctx, runFromEvent(evt)); err != nil {
				return fmt.Errorf("upsert run start: %w", err)
			}
		case progress.KindAdvance:
			id := evt.TaskUUID()
			d := deltas[id]
			if d == nil {
				d = &stepDelta{}
				deltas[id] = d
				order = append(order, id)
			}
			d.steps++
			d.last = evt.Step
			if evt.TS.After(d.at) {
				d.at = evt.TS
			}
		case progress.KindDone:
			completions = append(completions, evt)
		}
	}

	for _, id := range order {
		d := deltas[id]
		if err := s.repo.RecordSteps(ctx, id, d.steps, d.last, d.at); err != nil {
			return fmt.Errorf("record steps: %w", err)
		}
	}
	for _, evt := range completions {
		if err := s.repo.CompleteRun(ctx, evt.TaskUUID(), evt.TS); err != nil {
			return fmt.Errorf("complete run: %w", err)
		}
	}
	s.logger.Debug("task runs persisted",
		zap.Int("events", len(batch)),
		zap.Int("advanced", len(order)),
		zap.Int("completed", len(completions)),
	)
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *StoreSink) Close(context.Context) error {
	return nil
}

func runFromEvent(evt progress.Event) store.TaskRun {
	run := store.TaskRun{
		ID:        evt.TaskUUID(),
		Name:      evt.Task,
		Primary:   evt.Primary,
		Depth:     evt.Depth,
		StartedAt: evt.TS,
		Status:    store.RunRunning,
		UpdatedAt: evt.TS,
	}
	if evt.Total >= 0 {
		total := evt.Total
		run.Total = &total
	}
	return run
}

type stepDelta struct {
	steps int64
	last  string
	at    time.Time
}
