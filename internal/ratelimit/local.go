package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LocalLimiter keeps a token bucket per key in process memory. It is the
// development stand-in for the Redis limiter; keys are platform scope ids
// (phone number ids, page ids), so the map stays small and is never
// evicted.
type LocalLimiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	limit   rate.Limit
	burst   int
	window  time.Duration
}

// NewLocalLimiter allows limit units per window per key, with bursts up to
// the full window budget.
func NewLocalLimiter(limit int, window time.Duration) *LocalLimiter {
	return &LocalLimiter{
		buckets: make(map[string]*rate.Limiter),
		limit:   rate.Limit(float64(limit) / window.Seconds()),
		burst:   limit,
		window:  window,
	}
}

// Consume reserves cost tokens from the bucket of key without blocking.
func (l *LocalLimiter) Consume(_ context.Context, key string, cost int) (Decision, error) {
	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = rate.NewLimiter(l.limit, l.burst)
		l.buckets[key] = b
	}
	l.mu.Unlock()

	r := b.ReserveN(time.Now(), cost)
	if !r.OK() {
		// cost exceeds the bucket capacity outright.
		return Decision{Allowed: false, RetryAfter: l.window}, nil
	}
	if delay := r.Delay(); delay > 0 {
		r.Cancel()
		return Decision{Allowed: false, RetryAfter: delay}, nil
	}
	return Decision{Allowed: true}, nil
}
