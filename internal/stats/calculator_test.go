package stats

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/sanspareilsmyn/lineagelens/internal/config"
	"github.com/sanspareilsmyn/lineagelens/internal/model"
)

type captureWriter struct {
	mu        sync.Mutex
	snapshots []*WindowSnapshot
	err       error
}

func (w *captureWriter) WriteStats(_ context.Context, snapshot *WindowSnapshot) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.snapshots = append(w.snapshots, snapshot)
	return nil
}

func (w *captureWriter) all() []*WindowSnapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]*WindowSnapshot(nil), w.snapshots...)
}

type fakeFlowFile struct {
	id        string
	feed      string
	parents   []model.FlowFile
	complete  bool
	lastEvent *model.ProvenanceEvent
}

func (f *fakeFlowFile) ID() string { return f.id }
func (f *fakeFlowFile) FeedName() string { return f.feed }
func (f *fakeFlowFile) RootFlowFile() model.FlowFile { return f }
func (f *fakeFlowFile) Parents() []model.FlowFile { return f.parents }
func (f *fakeFlowFile) HasParents() bool { return len(f.parents) > 0 }
func (f *fakeFlowFile) IsComplete() bool { return f.complete }
func (f *fakeFlowFile) LastEvent() *model.ProvenanceEvent {
	return f.lastEvent
}

// newTestCalculator builds a calculator driven by a fake clock instead
// of wall time.
func newTestCalculator(writer StatsWriter, fc *fakeClock) *Calculator {
	cfg := config.AggregationConfig{IntervalSeconds: 10}
	c := NewCalculator(cfg, writer, zap.NewNop())
	c.clock = newWindowClock(cfg.Interval(), fc.Now)
	return c
}

func newEvent(id int64, feed, procID, procName string, bytesIn int64) *model.ProvenanceEvent {
	return &model.ProvenanceEvent{
		EventID:       id,
		EventType:     "RECEIVE",
		EventTime:     time.Now().UnixMilli(),
		FeedName:      feed,
		ComponentID:   procID,
		ComponentName: procName,
		FlowFileID:    "ff-1",
		BytesIn:       bytesIn,
	}
}

func TestCalculateStatsAggregatesSameWindow(t *testing.T) {
	writer := &captureWriter{}
	fc := newFakeClock(time.UnixMilli(0))
	c := newTestCalculator(writer, fc)

	require.NotNil(t, c.CalculateStats(newEvent(1, "f1", "p1", "P1", 100)))
	require.NotNil(t, c.CalculateStats(newEvent(2, "f1", "p1", "P1", 50)))

	c.SendStats(c.clock.CurrentWindowKey())

	snapshots := writer.all()
	require.Len(t, snapshots, 1)
	require.Len(t, snapshots[0].Groups, 1)
	group := snapshots[0].Groups[0]
	assert.Equal(t, "f1", group.FeedName)
	assert.Equal(t, "p1", group.ProcessorID)
	assert.Equal(t, int64(2), group.EventCount)
	assert.Equal(t, int64(150), group.BytesIn)
}

func TestCalculateStatsFeedFallsBackToFlowFile(t *testing.T) {
	writer := &captureWriter{}
	fc := newFakeClock(time.UnixMilli(0))
	c := newTestCalculator(writer, fc)

	event := newEvent(1, "", "p1", "P1", 10)
	event.FlowFile = &fakeFlowFile{id: "ff-1", feed: "fallback-feed"}

	stat := c.CalculateStats(event)
	require.NotNil(t, stat)
	assert.Equal(t, "fallback-feed", stat.FeedName)
}

func TestCalculateStatsDropsUnattributableEvent(t *testing.T) {
	writer := &captureWriter{}
	fc := newFakeClock(time.UnixMilli(0))
	c := newTestCalculator(writer, fc)

	event := newEvent(1, "", "p1", "P1", 10)
	event.FlowFile = &fakeFlowFile{id: "ff-1"} // no feed anywhere

	assert.Nil(t, c.CalculateStats(event))

	// Nothing was aggregated, so flushing dispatches nothing.
	c.SendStats(c.clock.CurrentWindowKey())
	assert.Empty(t, writer.all())
}

func TestRolloverFlushesStragglerWithoutNewEvents(t *testing.T) {
	writer := &captureWriter{}
	fc := newFakeClock(time.UnixMilli(0))
	c := newTestCalculator(writer, fc)

	require.NotNil(t, c.CalculateStats(newEvent(1, "f1", "p1", "P1", 100)))
	closedKey := c.clock.CurrentWindowKey()

	// No further events; the safety-net rollover check alone must
	// rescue the straggler once the window has passed.
	fc.Advance(11 * time.Second)
	c.maybeRollover()

	snapshots := writer.all()
	require.Len(t, snapshots, 1)
	assert.Equal(t, int64(0), snapshots[0].WindowStart)
	require.Len(t, snapshots[0].Groups, 1)
	assert.Equal(t, int64(1), snapshots[0].Groups[0].EventCount)

	assert.Nil(t, c.store.Flush(closedKey), "flushed window must be gone from the store")
	assert.Equal(t, closedKey+10_000, c.clock.CurrentWindowKey())
}

func TestSendStatsTwiceDispatchesOnce(t *testing.T) {
	writer := &captureWriter{}
	fc := newFakeClock(time.UnixMilli(0))
	c := newTestCalculator(writer, fc)

	require.NotNil(t, c.CalculateStats(newEvent(1, "f1", "p1", "P1", 1)))
	key := c.clock.CurrentWindowKey()

	c.SendStats(key)
	c.SendStats(key)

	assert.Len(t, writer.all(), 1)
}

func TestSendStatsDispatchFailureStillRemovesBucket(t *testing.T) {
	writer := &captureWriter{err: errors.New("broker unavailable")}
	fc := newFakeClock(time.UnixMilli(0))
	c := newTestCalculator(writer, fc)

	require.NotNil(t, c.CalculateStats(newEvent(1, "f1", "p1", "P1", 1)))
	key := c.clock.CurrentWindowKey()

	c.SendStats(key)
	assert.Equal(t, 0, c.store.Len(), "bucket is removed even when dispatch fails")
	assert.Nil(t, c.store.Flush(key))
}

func TestSendStatsWithoutTransportDiscardsWindow(t *testing.T) {
	fc := newFakeClock(time.UnixMilli(0))
	c := newTestCalculator(nil, fc)

	require.NotNil(t, c.CalculateStats(newEvent(1, "f1", "p1", "P1", 1)))
	key := c.clock.CurrentWindowKey()

	c.SendStats(key)
	assert.Equal(t, 0, c.store.Len())
}

func TestAddFailureStats(t *testing.T) {
	writer := &captureWriter{}
	fc := newFakeClock(time.UnixMilli(0))
	c := newTestCalculator(writer, fc)

	c.AddFailureStats(&EventStats{FeedName: "f1", ProcessorID: "p1", ProcessorName: "P1", Failure: true})
	c.SendStats(c.clock.CurrentWindowKey())

	snapshots := writer.all()
	require.Len(t, snapshots, 1)
	require.Len(t, snapshots[0].Groups, 1)
	assert.Equal(t, int64(1), snapshots[0].Groups[0].FailureCount)
}

func TestCompletionWalkSkipsIncompleteParents(t *testing.T) {
	writer := &captureWriter{}
	fc := newFakeClock(time.UnixMilli(0))
	c := newTestCalculator(writer, fc)

	parentLastEvent := newEvent(10, "f1", "parent-proc", "ParentProc", 0)
	completeParent := &fakeFlowFile{id: "parent-1", complete: true, lastEvent: parentLastEvent}
	incompleteParent := &fakeFlowFile{id: "parent-2", lastEvent: newEvent(11, "f1", "other", "Other", 0)}

	event := newEvent(12, "f1", "child-proc", "ChildProc", 5)
	event.EndingEvent = true
	event.FlowFile = &fakeFlowFile{
		id:      "child-1",
		feed:    "f1",
		parents: []model.FlowFile{completeParent, incompleteParent},
	}

	completed := c.CompleteStatsForParentFlowFiles(event)
	require.Len(t, completed, 1, "only the complete parent yields a record")
	assert.Same(t, parentLastEvent, completed[0])

	c.SendStats(c.clock.CurrentWindowKey())
	snapshots := writer.all()
	require.Len(t, snapshots, 1)
	require.Len(t, snapshots[0].Groups, 1)
	group := snapshots[0].Groups[0]
	assert.Equal(t, "parent-proc", group.ProcessorID)
	assert.Equal(t, int64(1), group.JobCompletionCount)
}

func TestCompletionWalkRequiresParents(t *testing.T) {
	fc := newFakeClock(time.UnixMilli(0))
	c := newTestCalculator(&captureWriter{}, fc)

	event := newEvent(1, "f1", "p1", "P1", 5)
	event.EndingEvent = true
	event.FlowFile = &fakeFlowFile{id: "root-1", feed: "f1"}

	assert.Nil(t, c.CompleteStatsForParentFlowFiles(event))
}

func TestEndingEventAggregatesParentCompletion(t *testing.T) {
	writer := &captureWriter{}
	fc := newFakeClock(time.UnixMilli(0))
	c := newTestCalculator(writer, fc)

	parentLastEvent := newEvent(20, "f1", "parent-proc", "ParentProc", 0)
	parent := &fakeFlowFile{id: "parent-1", complete: true, lastEvent: parentLastEvent}

	event := newEvent(21, "f1", "child-proc", "ChildProc", 7)
	event.EndingEvent = true
	event.FlowFile = &fakeFlowFile{id: "child-1", feed: "f1", parents: []model.FlowFile{parent}}

	require.NotNil(t, c.CalculateStats(event))
	c.SendStats(c.clock.CurrentWindowKey())

	snapshots := writer.all()
	require.Len(t, snapshots, 1)
	require.Len(t, snapshots[0].Groups, 2)

	byProc := make(map[string]GroupSnapshot)
	for _, group := range snapshots[0].Groups {
		byProc[group.ProcessorID] = group
	}
	assert.Equal(t, int64(1), byProc["child-proc"].EventCount)
	assert.Equal(t, int64(7), byProc["child-proc"].BytesIn)
	assert.Equal(t, int64(1), byProc["parent-proc"].JobCompletionCount)
}

func TestCalculateStatsRecoversFromPanic(t *testing.T) {
	fc := newFakeClock(time.UnixMilli(0))
	c := newTestCalculator(&captureWriter{}, fc)

	event := newEvent(1, "", "p1", "P1", 1)
	event.FlowFile = panickingFlowFile{}

	assert.NotPanics(t, func() {
		assert.Nil(t, c.CalculateStats(event))
	})
}

type panickingFlowFile struct{}

func (panickingFlowFile) ID() string { return "boom" }
func (panickingFlowFile) FeedName() string { panic("lineage tracker gone") }
func (panickingFlowFile) RootFlowFile() model.FlowFile { return nil }
func (panickingFlowFile) Parents() []model.FlowFile { return nil }
func (panickingFlowFile) HasParents() bool { return false }
func (panickingFlowFile) IsComplete() bool { return false }
func (panickingFlowFile) LastEvent() *model.ProvenanceEvent {
	return nil
}

func TestRunStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	fc := newFakeClock(time.UnixMilli(0))
	c := newTestCalculator(&captureWriter{}, fc)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.Run(ctx)
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("calculator Run did not stop after cancellation")
	}
}
