package dedupe

import (
	"context"
	"sync"
	"time"
)

// sweepFloor is the minimum map size before opportunistic sweeps start.
const sweepFloor = 1024

// MemoryStore is the development fallback: a mutex-guarded map with lazy
// expiry on read and an opportunistic sweep on write. It provides no
// cross-process guarantees and must never back staging or production.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]time.Time
	nextGC  int
	now     func() time.Time
}

// NewMemoryStore returns an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]time.Time),
		nextGC:  sweepFloor,
		now:     time.Now,
	}
}

// CheckAndMark reports whether key was marked within its TTL window and
// marks it if not. An expired entry counts as fresh and is overwritten, so
// expiry never races the check: both happen under one lock.
func (s *MemoryStore) CheckAndMark(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if exp, ok := s.entries[key]; ok && now.Before(exp) {
		return true, nil
	}
	s.entries[key] = now.Add(ttl)
	s.sweep(now)
	return false, nil
}

// Len reports the current entry count, including not-yet-swept expired
// entries.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// sweep drops expired entries once the map outgrows the current threshold.
// Caller holds the lock.
func (s *MemoryStore) sweep(now time.Time) {
	if len(s.entries) < s.nextGC {
		return
	}
	for k, exp := range s.entries {
		if !now.Before(exp) {
			delete(s.entries, k)
		}
	}
	s.nextGC = len(s.entries) * 2
	if s.nextGC < sweepFloor {
		s.nextGC = sweepFloor
	}
}
