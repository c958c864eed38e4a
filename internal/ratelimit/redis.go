package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter is a fixed-window counter shared by all replicas of a
// connector. One INCRBY per call; the caller that opens a window (count ==
// cost) owns setting its expiry.
type RedisLimiter struct {
	client *redis.Client
	prefix string
	limit  int64
	window time.Duration
}

// NewRedisLimiter allows limit units per window per key.
func NewRedisLimiter(client *redis.Client, prefix string, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		prefix: prefix,
		limit:  int64(limit),
		window: window,
	}
}

// Consume adds cost to the current window counter for key and checks the
// limit. When denied, RetryAfter is the remaining window.
func (l *RedisLimiter) Consume(ctx context.Context, key string, cost int) (Decision, error) {
	k := l.prefix + key

	count, err := l.client.IncrBy(ctx, k, int64(cost)).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit incr: %w", err)
	}
	if count == int64(cost) {
		// This call opened the window.
		if err := l.client.PExpire(ctx, k, l.window).Err(); err != nil {
			return Decision{}, fmt.Errorf("ratelimit expire: %w", err)
		}
	}
	if count > l.limit {
		retry := l.window
		if pttl, err := l.client.PTTL(ctx, k).Result(); err == nil && pttl > 0 {
			retry = pttl
		}
		return Decision{Allowed: false, RetryAfter: retry}, nil
	}
	return Decision{Allowed: true}, nil
}
