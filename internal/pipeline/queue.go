package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrQueueClosed is returned once the queue has been closed.
var ErrQueueClosed = errors.New("build queue closed")

// Queue is a bounded in-memory build queue with context-aware operations.
type Queue struct {
	ch      chan Request
	closeMu sync.RWMutex
	closed  bool
}

// NewQueue constructs a queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	return &Queue{ch: make(chan Request, max(capacity, 1))}
}

// Enqueue pushes a build or returns if the context ends.
func (q *Queue) Enqueue(ctx context.Context, req Request) error {
	q.closeMu.RLock()
	defer q.closeMu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- req:
		return nil
	}
}

// Dequeue pops the next build, respecting context cancellation.
func (q *Queue) Dequeue(ctx context.Context) (Request, error) {
	select {
	case <-ctx.Done():
		return Request{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case req, ok := <-q.ch:
		if !ok {
			return Request{}, ErrQueueClosed
		}
		return req, nil
	}
}

// Len reports how many builds are waiting.
func (q *Queue) Len() int { return len(q.ch) }

// Close closes the underlying channel for shutdown.
func (q *Queue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}
