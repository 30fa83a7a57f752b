package transport

import "errors"

var (
	ErrInvalidWriterConfig   = errors.New("invalid Kafka stats writer configuration provided")
	ErrSnapshotMarshalFailed = errors.New("failed to marshal window snapshot")
	ErrStatsPublishFailed    = errors.New("failed to publish window stats")
)
