package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, ""), mr
}

func TestRedisStore_CountsWithinWindow(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	first, err := store.Hit(ctx, "u:payment", time.Minute, now)
	require.NoError(t, err)
	second, err := store.Hit(ctx, "u:payment", time.Minute, now)
	require.NoError(t, err)

	assert.Equal(t, 1, first.Count)
	assert.Equal(t, 2, second.Count)
	assert.Equal(t, now.Add(time.Minute), first.ResetAt)
	assert.True(t, mr.Exists("ratelimit:u:payment"))
	assert.Equal(t, time.Minute, mr.TTL("ratelimit:u:payment"))
}

func TestRedisStore_WindowExpires(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 3; i++ {
		_, err := store.Hit(ctx, "u:payment", time.Minute, now)
		require.NoError(t, err)
	}
	mr.FastForward(time.Minute)

	w, err := store.Hit(ctx, "u:payment", time.Minute, now)
	require.NoError(t, err)
	assert.Equal(t, 1, w.Count)
}

func TestRedisStore_ResetAndStats(t *testing.T) {
	store, _ := newRedisStore(t)
	ctx := context.Background()
	now := time.Now()

	_, _ = store.Hit(ctx, "a:payment", time.Minute, now)
	_, _ = store.Hit(ctx, "b:payment", time.Minute, now)

	stats, err := store.Stats(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, Stats{Total: 2, Active: 2}, stats)

	require.NoError(t, store.Reset(ctx, "a:payment"))
	stats, _ = store.Stats(ctx, now)
	assert.Equal(t, 1, stats.Total)

	removed, err := store.Sweep(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestLimiter_WithRedisStoreSharesWindows(t *testing.T) {
	store, _ := newRedisStore(t)
	c := newClock()
	a, _ := newTestLimiter(c, Config{Store: store})
	b, _ := newTestLimiter(c, Config{Store: store})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := a.Allow(ctx, "u", EndpointPayment)
		require.NoError(t, err)
	}
	for i := 0; i < 2; i++ {
		d, err := b.Allow(ctx, "u", EndpointPayment)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}

	d, err := a.Allow(ctx, "u", EndpointPayment)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
}

func TestLimiter_RedisOutageFallsBackToMemory(t *testing.T) {
	store, mr := newRedisStore(t)
	l, _ := newTestLimiter(newClock(), Config{Store: store})
	mr.Close()

	d, err := l.Allow(context.Background(), "u", EndpointPayment)

	require.NoError(t, err)
	assert.True(t, d.Allowed)
}
