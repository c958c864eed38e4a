// Package ratelimit bounds inbound webhook processing per scope key. The
// inbound pipeline treats a nil limiter as unlimited and fails open when a
// limiter errors: throttling is protection, not a delivery guarantee.
package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of a Consume call. RetryAfter is only meaningful
// when Allowed is false and may be zero when the limiter cannot estimate a
// wait.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Limiter consumes cost units from the budget of key.
type Limiter interface {
	Consume(ctx context.Context, key string, cost int) (Decision, error)
}
