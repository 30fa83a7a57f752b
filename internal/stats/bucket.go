package stats

import (
	"sort"
	"sync"
	"time"
)

// GroupKey identifies one (feed, processor) series inside a window.
type GroupKey struct {
	FeedName    string
	ProcessorID string
}

// GroupTotals holds the running totals for one (feed, processor)
// series within a single window.
type GroupTotals struct {
	ProcessorName      string
	EventCount         int64
	BytesIn            int64
	BytesOut           int64
	DurationMS         int64
	FailureCount       int64
	JobCompletionCount int64
}

// WindowBucket accumulates per-(feed, processor) totals for one time
// window. It is mutated concurrently by producers until the store's
// flush removes it, after which the flusher owns it exclusively.
type WindowBucket struct {
	windowStart time.Time
	interval    time.Duration

	mu     sync.Mutex
	groups map[GroupKey]*GroupTotals
}

func newWindowBucket(windowStart time.Time, interval time.Duration) *WindowBucket {
	return &WindowBucket{
		windowStart: windowStart,
		interval:    interval,
		groups:      make(map[GroupKey]*GroupTotals),
	}
}

// WindowStart returns the start of the window this bucket covers.
func (b *WindowBucket) WindowStart() time.Time { return b.windowStart }

// AddStat merges one record into its (feed, processor) sub-total.
func (b *WindowBucket) AddStat(stat *EventStats) {
	key := GroupKey{FeedName: stat.FeedName, ProcessorID: stat.ProcessorID}

	b.mu.Lock()
	defer b.mu.Unlock()

	totals, ok := b.groups[key]
	if !ok {
		totals = &GroupTotals{ProcessorName: stat.ProcessorName}
		b.groups[key] = totals
	}
	totals.EventCount++
	totals.BytesIn += stat.BytesIn
	totals.BytesOut += stat.BytesOut
	totals.DurationMS += stat.DurationMS
	if stat.Failure {
		totals.FailureCount++
	}
	if stat.JobCompletion {
		totals.JobCompletionCount++
	}
}

// Totals returns a copy of the sub-total for one (feed, processor)
// series, and whether the series exists in this bucket.
func (b *WindowBucket) Totals(key GroupKey) (GroupTotals, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	totals, ok := b.groups[key]
	if !ok {
		return GroupTotals{}, false
	}
	return *totals, true
}

// WindowSnapshot is the externally observable payload for one flushed
// window, handed to the downstream transport.
type WindowSnapshot struct {
	WindowStart     int64           `json:"windowStart"` // epoch millis
	IntervalSeconds int             `json:"intervalSeconds"`
	Groups          []GroupSnapshot `json:"groups"`
}

// GroupSnapshot is the flushed form of one (feed, processor) series.
type GroupSnapshot struct {
	FeedName           string `json:"feedName"`
	ProcessorID        string `json:"processorId"`
	ProcessorName      string `json:"processorName"`
	EventCount         int64  `json:"eventCount"`
	BytesIn            int64  `json:"bytesIn"`
	BytesOut           int64  `json:"bytesOut"`
	DurationMS         int64  `json:"durationMillis"`
	FailureCount       int64  `json:"failureCount"`
	JobCompletionCount int64  `json:"jobCompletionCount"`
}

// Snapshot renders the bucket into the transport payload. Groups are
// sorted by feed then processor so the payload is deterministic.
func (b *WindowBucket) Snapshot() *WindowSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	snapshot := &WindowSnapshot{
		WindowStart:     b.windowStart.UnixMilli(),
		IntervalSeconds: int(b.interval / time.Second),
		Groups:          make([]GroupSnapshot, 0, len(b.groups)),
	}
	for key, totals := range b.groups {
		snapshot.Groups = append(snapshot.Groups, GroupSnapshot{
			FeedName:           key.FeedName,
			ProcessorID:        key.ProcessorID,
			ProcessorName:      totals.ProcessorName,
			EventCount:         totals.EventCount,
			BytesIn:            totals.BytesIn,
			BytesOut:           totals.BytesOut,
			DurationMS:         totals.DurationMS,
			FailureCount:       totals.FailureCount,
			JobCompletionCount: totals.JobCompletionCount,
		})
	}
	sort.Slice(snapshot.Groups, func(i, j int) bool {
		if snapshot.Groups[i].FeedName != snapshot.Groups[j].FeedName {
			return snapshot.Groups[i].FeedName < snapshot.Groups[j].FeedName
		}
		return snapshot.Groups[i].ProcessorID < snapshot.Groups[j].ProcessorID
	})
	return snapshot
}
