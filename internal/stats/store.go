package stats

import (
	"sync"
	"time"

	"go.uber.org/atomic"
)

// WindowStore is the concurrent mapping from window key (the window's
// end boundary in epoch millis) to its aggregation bucket. It is the
// only structure in the core mutated by multiple goroutines.
type WindowStore struct {
	interval time.Duration

	buckets        sync.Map // int64 window key -> *WindowBucket
	flushedThrough *atomic.Int64
}

// NewWindowStore creates an empty store for windows of the given length.
func NewWindowStore(interval time.Duration) *WindowStore {
	return &WindowStore{
		interval:       interval,
		flushedThrough: atomic.NewInt64(0),
	}
}

// GetOrCreate returns the bucket for a window key, creating it if
// absent. Concurrent creators for the same key converge to one bucket
// instance. It returns nil for a key at or below the flushed
// high-water mark: once a window is flushed it is never reinstated,
// and a record aimed at it is data loss the caller must log.
func (s *WindowStore) GetOrCreate(windowKey int64) *WindowBucket {
	if windowKey <= s.flushedThrough.Load() {
		return nil
	}

	windowStart := time.UnixMilli(windowKey).Add(-s.interval)
	actual, _ := s.buckets.LoadOrStore(windowKey, newWindowBucket(windowStart, s.interval))

	// A flush may have advanced the high-water mark between the check
	// above and the insert. Take the bucket back out so a flushed key
	// is never resurrected; if the flusher already removed it, the
	// record lands in a dead bucket and is lost, which is the
	// documented stale-insert race.
	if windowKey <= s.flushedThrough.Load() {
		s.buckets.Delete(windowKey)
		return nil
	}
	return actual.(*WindowBucket)
}

// Flush atomically removes and returns the bucket for a window key,
// or nil if it is absent (never created, or already flushed: a double
// flush is a safe no-op). The flushed high-water mark advances
// monotonically to the highest flushed key.
func (s *WindowStore) Flush(windowKey int64) *WindowBucket {
	for {
		current := s.flushedThrough.Load()
		if windowKey <= current || s.flushedThrough.CompareAndSwap(current, windowKey) {
			break
		}
	}

	value, loaded := s.buckets.LoadAndDelete(windowKey)
	if !loaded {
		return nil
	}
	return value.(*WindowBucket)
}

// Len returns the number of open windows.
func (s *WindowStore) Len() int {
	n := 0
	s.buckets.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
