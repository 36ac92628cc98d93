// Package queue delivers background jobs to a single handler.
package queue

import (
	"context"

	"github.com/yanqian/interview-evaluator/internal/domain/evaluation"
)

// Handler executes one job.
type Handler func(ctx context.Context, name string, payload map[string]any) error

// HandlerQueue supports setting a handler for job delivery.
type HandlerQueue interface {
	evaluation.JobQueue
	SetHandler(handler Handler)
	Close() error
}

type jobEnvelope struct {
	Name    string         `json:"name"`
	Payload map[string]any `json:"payload"`
}

func asPayload(payload any) map[string]any {
	typed, ok := payload.(map[string]any)
	if !ok {
		return map[string]any{}
	}
	return typed
}
