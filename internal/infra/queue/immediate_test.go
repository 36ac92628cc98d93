package queue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestImmediateQueueDeliversPayload(t *testing.T) {
	q := NewImmediateQueue(slog.New(slog.NewTextHandler(io.Discard, nil)))
	var (
		mu   sync.Mutex
		seen []string
		ids  []any
	)
	q.SetHandler(func(_ context.Context, name string, payload map[string]any) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, name)
		ids = append(ids, payload["answer_id"])
		return errors.New("logged, not returned")
	})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, q.Enqueue(ctx, "score_answer", map[string]any{"answer_id": int64(7)}))
	cancel()
	require.NoError(t, q.Enqueue(context.Background(), "score_answer", map[string]any{"answer_id": int64(7)}))
	require.NoError(t, q.Close())

	require.Equal(t, []string{"score_answer", "score_answer"}, seen)
	require.Equal(t, []any{int64(7), int64(7)}, ids)
}

func TestImmediateQueueWithoutHandler(t *testing.T) {
	q := NewImmediateQueue(slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, q.Enqueue(context.Background(), "noop", "not a map"))
	require.NoError(t, q.Close())
}
