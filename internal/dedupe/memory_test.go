package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_FirstCallerMarksLaterCallersSee(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	seen, err := store.CheckAndMark(ctx, "k1", time.Minute)
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = store.CheckAndMark(ctx, "k1", time.Minute)
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestMemoryStore_ConcurrentCallersExactlyOneWins(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	const callers = 64
	var fresh atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			seen, err := store.CheckAndMark(ctx, "contended", time.Minute)
			require.NoError(t, err)
			if !seen {
				fresh.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), fresh.Load(), "exactly one caller may observe a fresh key")
}

func TestMemoryStore_ExpiredEntryCountsAsFresh(t *testing.T) {
	store := NewMemoryStore()
	now := time.Unix(1_700_000_000, 0)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	seen, err := store.CheckAndMark(ctx, "k1", time.Minute)
	require.NoError(t, err)
	require.False(t, seen)

	now = now.Add(59 * time.Second)
	seen, _ = store.CheckAndMark(ctx, "k1", time.Minute)
	assert.True(t, seen, "still inside the window")

	now = now.Add(2 * time.Second)
	seen, _ = store.CheckAndMark(ctx, "k1", time.Minute)
	assert.False(t, seen, "window elapsed, key is fresh again")
}

func TestMemoryStore_SweepEvictsExpired(t *testing.T) {
	store := NewMemoryStore()
	store.nextGC = 8
	now := time.Unix(1_700_000_000, 0)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	for _, k := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		_, err := store.CheckAndMark(ctx, k, time.Second)
		require.NoError(t, err)
	}
	require.Equal(t, 7, store.Len())

	now = now.Add(2 * time.Second)
	_, err := store.CheckAndMark(ctx, "h", time.Minute)
	require.NoError(t, err)

	assert.Equal(t, 1, store.Len(), "write past the threshold sweeps expired entries")
}

func TestResolve_FailModeRouting(t *testing.T) {
	storeErr := &StoreError{Op: "setnx", Err: context.DeadlineExceeded}

	dup, err := Resolve(false, storeErr, FailModeOpen)
	assert.True(t, dup, "open suppresses the action on store failure")
	assert.Error(t, err)

	dup, err = Resolve(false, storeErr, FailModeClosed)
	assert.False(t, dup, "closed lets the action proceed on store failure")
	assert.Error(t, err)

	dup, err = Resolve(true, nil, FailModeOpen)
	assert.True(t, dup)
	assert.NoError(t, err)

	dup, err = Resolve(false, nil, FailModeClosed)
	assert.False(t, dup)
	assert.NoError(t, err)
}

func TestParseFailMode(t *testing.T) {
	m, err := ParseFailMode("open")
	require.NoError(t, err)
	assert.Equal(t, FailModeOpen, m)

	m, err = ParseFailMode("closed")
	require.NoError(t, err)
	assert.Equal(t, FailModeClosed, m)

	m, err = ParseFailMode("")
	require.NoError(t, err)
	assert.Equal(t, FailModeOpen, m)

	_, err = ParseFailMode("sideways")
	assert.Error(t, err)
}
