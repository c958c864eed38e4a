package dedupe

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// defaultOpTimeout bounds a single store round trip so a stalled Redis
// cannot stall webhook handling.
const defaultOpTimeout = time.Second

// RedisStore implements Store on Redis using SET NX PX, which is atomic on
// the server: concurrent callers for the same key race on one command and
// exactly one wins the mark.
type RedisStore struct {
	client    *redis.Client
	prefix    string
	opTimeout time.Duration
}

// NewRedisStore wraps an existing client. The prefix namespaces keys per
// connector (e.g. "whatsapp:dedupe:").
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{
		client:    client,
		prefix:    prefix,
		opTimeout: defaultOpTimeout,
	}
}

// CheckAndMark issues SET key "1" NX PX <ttl>. A successful SET means the
// key was fresh (seen=false); NX losing means a mark already exists within
// the TTL window (seen=true).
func (s *RedisStore) CheckAndMark(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	set, err := s.client.SetNX(ctx, s.prefix+key, "1", ttl).Result()
	if err != nil {
		return false, &StoreError{Op: "setnx", Err: err}
	}
	return !set, nil
}

// Ping verifies connectivity, used by the fail-closed boot check.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return &StoreError{Op: "ping", Err: err}
	}
	return nil
}

// Close releases the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
