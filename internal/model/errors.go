package model

import "errors"

var (
	ErrEventUnmarshalFailed = errors.New("failed to unmarshal provenance event")
	ErrMissingFlowFileID    = errors.New("provenance event has no flow file id")
)
