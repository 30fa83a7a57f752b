package stats

import (
	"time"

	"github.com/sanspareilsmyn/lineagelens/internal/model"
)

// EventStats is the immutable per-event statistic derived from one
// provenance event. It is created once, merged into a window bucket
// once, and not retained afterwards.
type EventStats struct {
	FeedName      string
	ProcessorID   string
	ProcessorName string
	EventTime     time.Time
	BytesIn       int64
	BytesOut      int64
	DurationMS    int64
	Failure       bool
	JobCompletion bool
}

// NewEventStats derives the statistic for one event. The feed name is
// passed in resolved (event feed or lineage-node fallback) rather than
// read off the event again.
func NewEventStats(feedName string, event *model.ProvenanceEvent) *EventStats {
	return &EventStats{
		FeedName:      feedName,
		ProcessorID:   event.ComponentID,
		ProcessorName: event.ComponentName,
		EventTime:     event.Time(),
		BytesIn:       event.BytesIn,
		BytesOut:      event.BytesOut,
		DurationMS:    event.DurationMS,
		Failure:       event.Failure,
	}
}

// NewJobCompletionStats synthesizes the statistic recording that a
// whole lineage tree finished, attributed to the completed parent's
// last event. Byte and duration figures were already counted when the
// last event itself was aggregated, so they stay zero here.
func NewJobCompletionStats(feedName string, lastEvent *model.ProvenanceEvent) *EventStats {
	if lastEvent == nil {
		return nil
	}
	return &EventStats{
		FeedName:      feedName,
		ProcessorID:   lastEvent.ComponentID,
		ProcessorName: lastEvent.ComponentName,
		EventTime:     lastEvent.Time(),
		JobCompletion: true,
	}
}
