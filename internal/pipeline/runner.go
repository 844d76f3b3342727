package pipeline

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/taskprogress/internal/progress"
)

// Runner is the coordinating goroutine for queued builds. It is the only
// goroutine that drives the reporter's primary stack.
type Runner struct {
	pipeline *Pipeline
	queue    *Queue
	stack    *progress.TaskStack
	logger   *zap.Logger
	onResult func(Result)
}

// RunnerOption customizes a Runner.
type RunnerOption func(*Runner)

// WithResultHook calls fn after every successful build.
func WithResultHook(fn func(Result)) RunnerOption {
	return func(r *Runner) { r.onResult = fn }
}

// NewRunner binds p and queue to stack, normally the reporter's primary stack.
func NewRunner(p *Pipeline, queue *Queue, stack *progress.TaskStack, logger *zap.Logger, opts ...RunnerOption) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Runner{pipeline: p, queue: queue, stack: stack, logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Submit assigns an ID when missing and enqueues the build.
func (r *Runner) Submit(ctx context.Context, req Request) (Request, error) {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	if err := r.queue.Enqueue(ctx, req); err != nil {
		return Request{}, err
	}
	return req, nil
}

// Run blocks, executing queued builds until ctx finishes or the queue closes.
func (r *Runner) Run(ctx context.Context) {
	ctx = progress.WithStack(ctx, r.stack)
	for {
		req, err := r.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrQueueClosed) {
				return
			}
			r.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		r.logger.Debug("dequeued build", zap.String("build_id", req.ID.String()))
		res, err := r.pipeline.Run(ctx, req)
		if err != nil {
			r.logger.Warn("build failed", zap.String("build_id", req.ID.String()), zap.Error(err))
			continue
		}
		if r.onResult != nil {
			r.onResult(res)
		}
	}
}
