package stats

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{t: t}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = f.t.Add(d)
}

func TestWindowClockNoRolloverBeforeBoundary(t *testing.T) {
	fc := newFakeClock(time.UnixMilli(0))
	clock := newWindowClock(10*time.Second, fc.Now)

	key := clock.CurrentWindowKey()
	assert.Equal(t, int64(10_000), key)

	// Exactly at the boundary is still inside the window.
	fc.Advance(10 * time.Second)
	_, rolled := clock.MaybeRollover()
	assert.False(t, rolled)
	assert.Equal(t, key, clock.CurrentWindowKey())
}

func TestWindowClockRolloverAdvancesOneInterval(t *testing.T) {
	fc := newFakeClock(time.UnixMilli(0))
	clock := newWindowClock(10*time.Second, fc.Now)

	fc.Advance(11 * time.Second)
	closedKey, rolled := clock.MaybeRollover()
	require.True(t, rolled)
	assert.Equal(t, int64(10_000), closedKey)
	assert.Equal(t, int64(20_000), clock.CurrentWindowKey())

	// A second call at the same instant is a no-op; the boundary never
	// skips ahead.
	_, rolled = clock.MaybeRollover()
	assert.False(t, rolled)
	assert.Equal(t, int64(20_000), clock.CurrentWindowKey())
}

func TestWindowClockCatchesUpOneIntervalPerCall(t *testing.T) {
	fc := newFakeClock(time.UnixMilli(0))
	clock := newWindowClock(10*time.Second, fc.Now)

	fc.Advance(35 * time.Second)

	var closed []int64
	for {
		key, rolled := clock.MaybeRollover()
		if !rolled {
			break
		}
		closed = append(closed, key)
	}
	assert.Equal(t, []int64{10_000, 20_000, 30_000}, closed)
	assert.Equal(t, int64(40_000), clock.CurrentWindowKey())
}

func TestWindowClockConcurrentRolloverHasOneWinner(t *testing.T) {
	const workers = 32

	fc := newFakeClock(time.UnixMilli(0))
	clock := newWindowClock(10*time.Second, fc.Now)
	fc.Advance(11 * time.Second)

	var wg sync.WaitGroup
	winners := make(chan int64, workers)
	start := make(chan struct{})

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if key, rolled := clock.MaybeRollover(); rolled {
				winners <- key
			}
		}()
	}
	close(start)
	wg.Wait()
	close(winners)

	var keys []int64
	for key := range winners {
		keys = append(keys, key)
	}
	require.Len(t, keys, 1, "exactly one caller must win the rollover")
	assert.Equal(t, int64(10_000), keys[0])
	assert.Equal(t, int64(20_000), clock.CurrentWindowKey())
}
