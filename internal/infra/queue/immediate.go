package queue

import (
	"context"
	"log/slog"
	"sync"
)

// ImmediateQueue runs the handler in a goroutine on enqueue.
type ImmediateQueue struct {
	mu      sync.RWMutex
	handler Handler
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewImmediateQueue constructs the queue.
func NewImmediateQueue(logger *slog.Logger) *ImmediateQueue {
	return &ImmediateQueue{logger: logger.With("component", "queue.immediate")}
}

// SetHandler replaces the handler used for queued jobs.
func (q *ImmediateQueue) SetHandler(handler Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handler = handler
}

// Enqueue invokes the handler asynchronously. The job outlives the caller's
// cancellation.
func (q *ImmediateQueue) Enqueue(ctx context.Context, name string, payload any) error {
	q.mu.RLock()
	handler := q.handler
	q.mu.RUnlock()
	if handler == nil {
		return nil
	}
	typed := asPayload(payload)
	jobCtx := context.WithoutCancel(ctx)
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		if err := handler(jobCtx, name, typed); err != nil {
			q.logger.Warn("job failed", "job", name, "error", err)
		}
	}()
	return nil
}

// Close waits for running jobs.
func (q *ImmediateQueue) Close() error {
	q.wg.Wait()
	return nil
}

var _ HandlerQueue = (*ImmediateQueue)(nil)
