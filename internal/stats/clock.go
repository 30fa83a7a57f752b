package stats

import (
	"time"

	"go.uber.org/atomic"
)

// WindowClock is the single source of truth for which window is
// currently open. A window is identified by its end boundary in epoch
// millis; the boundary only moves forward, one interval per rollover.
type WindowClock struct {
	interval time.Duration
	now      func() time.Time

	boundary *atomic.Int64
	rolling  *atomic.Bool
}

// NewWindowClock opens the first window, ending one interval from now.
func NewWindowClock(interval time.Duration) *WindowClock {
	return newWindowClock(interval, time.Now)
}

func newWindowClock(interval time.Duration, now func() time.Time) *WindowClock {
	return &WindowClock{
		interval: interval,
		now:      now,
		boundary: atomic.NewInt64(now().Add(interval).UnixMilli()),
		rolling:  atomic.NewBool(false),
	}
}

// CurrentWindowKey returns the key of the active window. Note this is
// a separate read from the rollover check in MaybeRollover: a caller
// can observe a key whose window is concurrently being flushed.
func (c *WindowClock) CurrentWindowKey() int64 {
	return c.boundary.Load()
}

// Interval returns the fixed window length.
func (c *WindowClock) Interval() time.Duration {
	return c.interval
}

// MaybeRollover closes the current window if wall-clock now is past
// its boundary. Exactly one caller wins the busy guard per boundary
// crossing and advances the boundary by one interval; everyone else
// no-ops. The winner gets back the closed window's key and is the one
// flush trigger for it; the guard covers only the boundary
// read-and-advance, never the flush's transport I/O.
func (c *WindowClock) MaybeRollover() (closedKey int64, rolled bool) {
	if c.now().UnixMilli() <= c.boundary.Load() {
		return 0, false
	}
	if !c.rolling.CompareAndSwap(false, true) {
		return 0, false
	}
	defer c.rolling.Store(false)

	// Re-check under the guard: a caller that passed the boundary check
	// and then waited out an earlier winner must not advance again.
	closedKey = c.boundary.Load()
	if c.now().UnixMilli() <= closedKey {
		return 0, false
	}
	c.boundary.Store(closedKey + c.interval.Milliseconds())
	return closedKey, true
}
