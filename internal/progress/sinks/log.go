package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/taskprogress/internal/progress"
)

// LogSink emits one structured log line per task event. It is the event log of
// record when no durable store is configured.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("task_id", evt.TaskUUID().String()),
			zap.String("kind", string(evt.Kind)),
			zap.String("task", evt.Task),
			zap.Int64("step_index", evt.StepIndex),
			zap.Int("depth", evt.Depth),
			zap.Bool("primary", evt.Primary),
		}
		if evt.Total >= 0 {
			fields = append(fields, zap.Int64("total", evt.Total))
		}
		if evt.Kind == progress.KindAdvance {
			fields = append(fields,
				zap.String("step", evt.Step),
				zap.String("previous_step", evt.PreviousStep),
			)
		}
		s.logger.Info("task event", fields...)
	}
	return nil
}

// Close flushes buffered log entries.
func (s *LogSink) Close(context.Context) error {
	_ = s.logger.Sync()
	return nil
}
