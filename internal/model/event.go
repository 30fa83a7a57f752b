package model

import "time"

// ProvenanceEvent is one decoded lineage event: a single unit of work
// passing through one component of the processing graph. Events are
// immutable once parsed; the FlowFile reference is attached by the
// lineage tracker before the event reaches the stats path.
type ProvenanceEvent struct {
	EventID       int64    `json:"eventId"`
	EventType     string   `json:"eventType"`
	EventTime     int64    `json:"eventTime"` // epoch millis
	FeedName      string   `json:"feedName,omitempty"`
	ComponentID   string   `json:"componentId"`
	ComponentName string   `json:"componentName"`
	FlowFileID    string   `json:"flowFileUuid"`
	ParentIDs     []string `json:"parentUuids,omitempty"`
	BytesIn       int64    `json:"bytesIn"`
	BytesOut      int64    `json:"bytesOut"`
	DurationMS    int64    `json:"eventDuration"`
	Failure       bool     `json:"isFailure"`
	EndingEvent   bool     `json:"isEndingFlowFileEvent"`

	// FlowFile is the lineage node this event belongs to; nil until the
	// event has been observed by the lineage cache.
	FlowFile FlowFile `json:"-"`
}

// Time returns the event timestamp as a time.Time.
func (e *ProvenanceEvent) Time() time.Time {
	return time.UnixMilli(e.EventTime)
}

// IsEndingFlowFileEvent reports whether this event marks its flow file
// as finished producing further events.
func (e *ProvenanceEvent) IsEndingFlowFileEvent() bool {
	return e.EndingEvent
}

// FlowFile is a lineage node: a unit of work with parent/child links
// produced by fan-out/fan-in. The stats core only reads from it; the
// graph is owned and mutated by the lineage tracker, so every read is
// best effort with respect to concurrent updates.
type FlowFile interface {
	ID() string
	FeedName() string
	RootFlowFile() FlowFile
	Parents() []FlowFile
	HasParents() bool
	IsComplete() bool
	LastEvent() *ProvenanceEvent
}
