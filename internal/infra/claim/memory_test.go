package claim

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryStoreClaimIsExclusive(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	token, ok, err := store.Acquire(ctx, "a", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = store.Acquire(ctx, "a", time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Release(ctx, "a", "someone-else"))
	_, ok, _ = store.Acquire(ctx, "a", time.Minute)
	require.False(t, ok)

	require.NoError(t, store.Release(ctx, "a", token))
	_, ok, _ = store.Acquire(ctx, "a", time.Minute)
	require.True(t, ok)
}

func TestMemoryStoreClaimExpires(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	_, ok, _ := store.Acquire(context.Background(), "a", time.Second)
	require.True(t, ok)

	now = now.Add(2 * time.Second)
	_, ok, _ = store.Acquire(context.Background(), "a", time.Second)
	require.True(t, ok)
}
