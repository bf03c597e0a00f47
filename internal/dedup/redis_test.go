package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisStore(t *testing.T, window time.Duration) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	store, err := NewRedisStore("redis://"+mr.Addr(), window)
	require.NoError(t, err)

	return mr, store
}

func TestRedisStore_CheckAndRecord(t *testing.T) {
	mr, store := setupRedisStore(t, time.Minute)
	defer mr.Close()
	defer store.Close()
	ctx := context.Background()

	dup, err := store.CheckAndRecord(ctx, "sub-1")
	require.NoError(t, err)
	assert.False(t, dup)

	dup, err = store.CheckAndRecord(ctx, "sub-1")
	require.NoError(t, err)
	assert.True(t, dup)

	dup, err = store.CheckAndRecord(ctx, "sub-2")
	require.NoError(t, err)
	assert.False(t, dup, "distinct ids are independent")
}

func TestRedisStore_WindowExpiry(t *testing.T) {
	mr, store := setupRedisStore(t, time.Minute)
	defer mr.Close()
	defer store.Close()
	ctx := context.Background()

	_, err := store.CheckAndRecord(ctx, "sub-1")
	require.NoError(t, err)

	// Advance past the idempotency window.
	mr.FastForward(2 * time.Minute)

	seen, err := store.Seen(ctx, "sub-1")
	require.NoError(t, err)
	assert.False(t, seen)

	dup, err := store.CheckAndRecord(ctx, "sub-1")
	require.NoError(t, err)
	assert.False(t, dup, "expired id is a fresh sighting")
}

func TestRedisStore_Len(t *testing.T) {
	mr, store := setupRedisStore(t, time.Minute)
	defer mr.Close()
	defer store.Close()
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		_, err := store.CheckAndRecord(ctx, id)
		require.NoError(t, err)
	}

	n, err := store.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestNewRedisStore_BadURL(t *testing.T) {
	_, err := NewRedisStore("not-a-url", time.Minute)
	assert.Error(t, err)
}
