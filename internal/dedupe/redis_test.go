package dedupe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, "whatsapp:dedupe:"), mr
}

func TestRedisStore_FirstCallerMarksLaterCallersSee(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	seen, err := store.CheckAndMark(ctx, "whatsapp:PHONE_ID_001:msg:wamid.fake.text.001", 5*time.Minute)
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = store.CheckAndMark(ctx, "whatsapp:PHONE_ID_001:msg:wamid.fake.text.001", 5*time.Minute)
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestRedisStore_KeysArePrefixed(t *testing.T) {
	store, mr := newTestRedisStore(t)

	_, err := store.CheckAndMark(context.Background(), "k1", time.Minute)
	require.NoError(t, err)

	assert.True(t, mr.Exists("whatsapp:dedupe:k1"))
	assert.False(t, mr.Exists("k1"))
}

func TestRedisStore_TTLWindowExpires(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	seen, err := store.CheckAndMark(ctx, "k1", time.Minute)
	require.NoError(t, err)
	require.False(t, seen)

	mr.FastForward(61 * time.Second)

	seen, err = store.CheckAndMark(ctx, "k1", time.Minute)
	require.NoError(t, err)
	assert.False(t, seen, "expired key must count as fresh")
}

func TestRedisStore_DistinctKeysIndependent(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	seen, err := store.CheckAndMark(ctx, "whatsapp:PHONE_ID_001:status:m1:delivered", time.Minute)
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = store.CheckAndMark(ctx, "whatsapp:PHONE_ID_001:status:m1:read", time.Minute)
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestRedisStore_ErrorWrappedAsStoreError(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := NewRedisStore(client, "p:")

	mr.Close()

	_, err := store.CheckAndMark(context.Background(), "k1", time.Minute)
	require.Error(t, err)
	var se *StoreError
	assert.True(t, errors.As(err, &se))
	assert.Equal(t, "setnx", se.Op)

	err = store.Ping(context.Background())
	require.Error(t, err)
	assert.True(t, errors.As(err, &se))
}

func TestRedisStore_PingHealthy(t *testing.T) {
	store, _ := newTestRedisStore(t)
	assert.NoError(t, store.Ping(context.Background()))
}
