// Package dedupe provides the atomic check-and-mark store used to
// suppress duplicate webhook deliveries and duplicate outbound sends.
package dedupe

import (
	"context"
	"fmt"
	"time"
)

// Store marks keys atomically. CheckAndMark returns seen=false exactly once
// per key within the TTL window: the first caller marks the key and every
// later caller inside the window observes seen=true.
type Store interface {
	CheckAndMark(ctx context.Context, key string, ttl time.Duration) (seen bool, err error)
}

// StoreError wraps an operational store failure (connectivity, timeout).
// Callers route it through a FailMode rather than inspecting the cause.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("dedupe %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// FailMode decides what a store failure means for the guarded action.
type FailMode int

const (
	// FailModeOpen treats a store failure as "duplicate": the guarded
	// action is suppressed. Used for outbound sends, where a double send
	// is worse than a dropped one.
	FailModeOpen FailMode = iota

	// FailModeClosed treats a store failure as "not duplicate": the
	// guarded action proceeds. Used for inbound webhooks, where dropping
	// a delivery is worse than processing it twice.
	FailModeClosed
)

func (m FailMode) String() string {
	if m == FailModeClosed {
		return "closed"
	}
	return "open"
}

// ParseFailMode maps the config values "open" and "closed".
func ParseFailMode(s string) (FailMode, error) {
	switch s {
	case "open", "":
		return FailModeOpen, nil
	case "closed":
		return FailModeClosed, nil
	default:
		return FailModeOpen, fmt.Errorf("unknown fail mode %q", s)
	}
}

// Resolve routes a CheckAndMark outcome through a fail mode. When err is
// nil the store answer stands. On error the mode decides: open suppresses
// (duplicate=true), closed proceeds (duplicate=false). The error is
// returned alongside so callers can log and tag degraded results.
func Resolve(seen bool, err error, mode FailMode) (duplicate bool, storeErr error) {
	if err == nil {
		return seen, nil
	}
	return mode == FailModeOpen, err
}
