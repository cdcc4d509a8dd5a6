package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestUsageCounter_IncrementIfAllowed(t *testing.T) {
	mr, rdb := newMiniRedis(t)
	counter := NewUsageCounter(rdb)
	ctx := context.Background()
	now := time.Date(2026, 2, 13, 10, 0, 0, 0, time.UTC)

	for i := int64(1); i <= 2; i++ {
		res, err := counter.IncrementIfAllowed(ctx, "u1", now, 2, 10)
		require.NoError(t, err)
		assert.True(t, res.Incremented)
		assert.Equal(t, i, res.Daily)
		assert.Equal(t, i, res.Monthly)
	}

	res, err := counter.IncrementIfAllowed(ctx, "u1", now, 2, 10)
	require.NoError(t, err)
	assert.False(t, res.Incremented)
	assert.Equal(t, int64(2), res.Daily)

	assert.True(t, mr.Exists("chatlima:usage:u1:d:20260213"))
	assert.True(t, mr.Exists("chatlima:usage:u1:m:202602"))
	assert.Equal(t, 14*time.Hour, mr.TTL("chatlima:usage:u1:d:20260213"))
}

func TestUsageCounter_UnlimitedAndPeek(t *testing.T) {
	_, rdb := newMiniRedis(t)
	counter := NewUsageCounter(rdb)
	ctx := context.Background()
	now := time.Date(2026, 2, 13, 23, 59, 0, 0, time.UTC)

	daily, monthly, err := counter.Peek(ctx, "u2", now)
	require.NoError(t, err)
	assert.Zero(t, daily)
	assert.Zero(t, monthly)

	for i := 0; i < 5; i++ {
		res, err := counter.IncrementIfAllowed(ctx, "u2", now, -1, -1)
		require.NoError(t, err)
		assert.True(t, res.Incremented)
	}

	daily, monthly, err = counter.Peek(ctx, "u2", now)
	require.NoError(t, err)
	assert.Equal(t, int64(5), daily)
	assert.Equal(t, int64(5), monthly)

	// a new day starts a fresh daily window but keeps the month
	res, err := counter.IncrementIfAllowed(ctx, "u2", now.Add(2*time.Minute), -1, -1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Daily)
	assert.Equal(t, int64(6), res.Monthly)
}

func TestUsageCounter_RedisDown(t *testing.T) {
	mr, rdb := newMiniRedis(t)
	counter := NewUsageCounter(rdb)
	mr.Close()

	_, err := counter.IncrementIfAllowed(context.Background(), "u1", time.Now(), 1, 1)
	assert.Error(t, err)
}
