package stats

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sanspareilsmyn/lineagelens/internal/config"
	"github.com/sanspareilsmyn/lineagelens/internal/model"
)

// StatsWriter is the downstream transport for flushed windows. It is
// expected to handle its own retries and acknowledgment; the
// calculator treats each call as fire-and-forget and only logs errors.
type StatsWriter interface {
	WriteStats(ctx context.Context, snapshot *WindowSnapshot) error
}

// Calculator is the aggregation orchestrator: it converts provenance
// events into stat records, buckets them into the current window,
// runs the completion walk for ending events, and dispatches closed
// windows downstream. Safe for any number of concurrent producers.
type Calculator struct {
	interval time.Duration
	clock    *WindowClock
	store    *WindowStore
	writer   StatsWriter
	logger   *zap.Logger
}

// NewCalculator creates a Calculator for the configured window length.
// The writer may be nil, in which case flushed windows are discarded
// with a log line instead of dispatched.
func NewCalculator(cfg config.AggregationConfig, writer StatsWriter, logger *zap.Logger) *Calculator {
	interval := cfg.Interval()
	c := &Calculator{
		interval: interval,
		clock:    NewWindowClock(interval),
		store:    NewWindowStore(interval),
		writer:   writer,
		logger:   logger,
	}
	logger.Info("Stats calculator initialized",
		zap.Duration("window_interval", interval),
		zap.Bool("transport_configured", writer != nil),
	)
	return c
}

// CalculateStats converts one provenance event into a stat record and
// aggregates it into the current window. For an ending event it also
// runs the completion walk over the event's parents. It returns nil
// when the event was dropped; no failure here ever propagates to the
// producer, since a single bad event must not take the calculator down.
func (c *Calculator) CalculateStats(event *model.ProvenanceEvent) (stat *EventStats) {
	if event == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Recovered from panic while aggregating event",
				zap.Int64("event_id", event.EventID),
				zap.String("flow_file", event.FlowFileID),
				zap.Any("panic", r),
			)
			stat = nil
		}
	}()

	feedName := c.resolveFeedName(event)
	if feedName == "" {
		unattributableEvents.Inc()
		c.logger.Error("Unable to add statistics for event",
			zap.Int64("event_id", event.EventID),
			zap.String("event_type", event.EventType),
			zap.String("flow_file", event.FlowFileID),
			zap.Error(ErrUnattributableEvent),
		)
		return nil
	}

	stat = NewEventStats(feedName, event)
	c.addStat(stat)

	if event.IsEndingFlowFileEvent() {
		completed := c.CompleteStatsForParentFlowFiles(event)
		for _, e := range completed {
			c.logger.Info("Job completion recorded for parent flow file",
				zap.Int64("event_id", e.EventID),
				zap.String("flow_file", e.FlowFileID),
				zap.String("event_type", e.EventType),
				zap.String("processor", e.ComponentName),
			)
		}
	}
	return stat
}

// AddFailureStats aggregates a record for an externally detected
// failure through the same path as regular events.
func (c *Calculator) AddFailureStats(stat *EventStats) {
	c.addStat(stat)
}

// CompleteStatsForParentFlowFiles runs the completion walk for an
// ending event: every direct parent currently flagged complete yields
// one synthetic job-completion record, aggregated as a batch through
// the normal path. It returns those parents' last events for the
// caller to log. Parents not yet complete are skipped; they get their
// turn when their own ending event arrives. Only one parent level is
// walked per call; completion propagates upward incrementally.
//
// The lineage graph is owned by the tracker and may change while we
// read it; the completeness check and the last-event read are a
// best-effort pair, consistent with the at-least-once design.
func (c *Calculator) CompleteStatsForParentFlowFiles(event *model.ProvenanceEvent) []*model.ProvenanceEvent {
	flowFile := event.FlowFile
	if flowFile == nil || !event.IsEndingFlowFileEvent() || !flowFile.HasParents() {
		return nil
	}

	feedName := c.resolveFeedName(event)
	var batch []*EventStats
	var completedEvents []*model.ProvenanceEvent
	for _, parent := range flowFile.Parents() {
		if !parent.IsComplete() {
			continue
		}
		stat := NewJobCompletionStats(feedName, parent.LastEvent())
		if stat == nil {
			continue
		}
		batch = append(batch, stat)
		completedEvents = append(completedEvents, parent.LastEvent())
	}
	for _, stat := range batch {
		c.addStat(stat)
		completionRecords.Inc()
	}
	return completedEvents
}

// SendStats flushes one window and dispatches it: the bucket is
// atomically removed from the store, then handed to the transport.
// An absent key is a logged no-op. Deliberately, a nil transport does
// NOT keep the bucket around: the window's key can never become
// current again, so the bucket is removed and discarded with a log
// line. A dispatch failure is likewise logged with the bucket already
// gone; bounded memory is traded for guaranteed delivery.
func (c *Calculator) SendStats(windowKey int64) {
	bucket := c.store.Flush(windowKey)
	if bucket == nil {
		c.logger.Debug("No stats to send for window", zap.Int64("window_key", windowKey))
		return
	}
	windowsFlushed.Inc()

	if c.writer == nil {
		c.logger.Warn("No stats transport configured, discarding window",
			zap.Int64("window_key", windowKey),
			zap.Time("window_start", bucket.WindowStart()),
		)
		return
	}

	snapshot := bucket.Snapshot()
	if err := c.writer.WriteStats(context.Background(), snapshot); err != nil {
		dispatchFailures.Inc()
		c.logger.Error("Failed to dispatch window stats",
			zap.Int64("window_key", windowKey),
			zap.Int("group_count", len(snapshot.Groups)),
			zap.Error(err),
		)
		return
	}
	c.logger.Debug("Dispatched window stats",
		zap.Int64("window_key", windowKey),
		zap.Int("group_count", len(snapshot.Groups)),
	)
}

// Run drives the background safety-net ticker: once per interval it
// performs the rollover check so a stale bucket is flushed even when
// no events arrive to trigger it. Blocks until ctx is cancelled.
func (c *Calculator) Run(ctx context.Context) error {
	sugar := c.logger.Sugar()
	sugar.Info("Starting rollover ticker...")
	defer sugar.Info("Rollover ticker stopped.")

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.maybeRollover()
		case <-ctx.Done():
			sugar.Info("Context cancelled, flushing current window...")
			// Best-effort final flush; producers are shutting down too,
			// so anything still in flight may be lost.
			c.SendStats(c.clock.CurrentWindowKey())
			return ctx.Err()
		}
	}
}

// addStat rolls the clock over if due, then merges the record into
// the current window's bucket. A nil bucket means the window was
// flushed between the key read and the insert; the record is dropped
// and the loss logged.
func (c *Calculator) addStat(stat *EventStats) {
	if stat == nil {
		return
	}
	c.maybeRollover()

	windowKey := c.clock.CurrentWindowKey()
	bucket := c.store.GetOrCreate(windowKey)
	if bucket == nil {
		staleWindowDrops.Inc()
		c.logger.Warn("Record arrived for an already-flushed window, dropping",
			zap.Int64("window_key", windowKey),
			zap.String("feed_name", stat.FeedName),
			zap.String("processor", stat.ProcessorName),
			zap.Error(ErrStaleWindow),
		)
		return
	}
	bucket.AddStat(stat)
	eventsAggregated.WithLabelValues(stat.FeedName).Inc()
}

func (c *Calculator) maybeRollover() {
	if closedKey, rolled := c.clock.MaybeRollover(); rolled {
		c.SendStats(closedKey)
	}
}

func (c *Calculator) resolveFeedName(event *model.ProvenanceEvent) string {
	if event.FeedName != "" {
		return event.FeedName
	}
	if event.FlowFile != nil {
		return event.FlowFile.FeedName()
	}
	return ""
}
