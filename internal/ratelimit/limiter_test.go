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

func TestLocalLimiter_AllowsWithinBudget(t *testing.T) {
	l := NewLocalLimiter(5, time.Minute)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		d, err := l.Consume(ctx, "PHONE_ID_001", 1)
		require.NoError(t, err)
		assert.True(t, d.Allowed, "call %d", i)
	}

	d, err := l.Consume(ctx, "PHONE_ID_001", 1)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Greater(t, d.RetryAfter, time.Duration(0))
}

func TestLocalLimiter_KeysAreIndependent(t *testing.T) {
	l := NewLocalLimiter(1, time.Minute)
	ctx := context.Background()

	d, err := l.Consume(ctx, "PHONE_ID_001", 1)
	require.NoError(t, err)
	require.True(t, d.Allowed)

	d, err = l.Consume(ctx, "PHONE_ID_002", 1)
	require.NoError(t, err)
	assert.True(t, d.Allowed, "other keys keep their own budget")
}

func TestLocalLimiter_CostBeyondCapacityDenied(t *testing.T) {
	l := NewLocalLimiter(3, time.Minute)

	d, err := l.Consume(context.Background(), "k", 10)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, time.Minute, d.RetryAfter)
}

func newTestRedisLimiter(t *testing.T, limit int, window time.Duration) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLimiter(client, "whatsapp:rl:", limit, window), mr
}

func TestRedisLimiter_DeniesOverLimitWithRetryAfter(t *testing.T) {
	l, _ := newTestRedisLimiter(t, 3, time.Minute)
	ctx := context.Background()

	d, err := l.Consume(ctx, "PHONE_ID_001", 3)
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = l.Consume(ctx, "PHONE_ID_001", 1)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Greater(t, d.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, d.RetryAfter, time.Minute)
}

func TestRedisLimiter_WindowResets(t *testing.T) {
	l, mr := newTestRedisLimiter(t, 2, time.Minute)
	ctx := context.Background()

	_, err := l.Consume(ctx, "k", 2)
	require.NoError(t, err)
	d, err := l.Consume(ctx, "k", 1)
	require.NoError(t, err)
	require.False(t, d.Allowed)

	mr.FastForward(61 * time.Second)

	d, err = l.Consume(ctx, "k", 1)
	require.NoError(t, err)
	assert.True(t, d.Allowed, "new window, fresh budget")
}

func TestRedisLimiter_ErrorSurfacesToCaller(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	l := NewRedisLimiter(client, "p:", 1, time.Minute)

	mr.Close()

	_, err := l.Consume(context.Background(), "k", 1)
	assert.Error(t, err)
}
