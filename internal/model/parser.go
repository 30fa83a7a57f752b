package model

import (
	"encoding/json"
	"fmt"
)

// ParseEvent decodes a raw provenance event from its JSON wire form.
// It returns ErrEventUnmarshalFailed (wrapping the original error) if
// decoding fails, and ErrMissingFlowFileID if the event carries no
// flow file identifier (such an event cannot be placed in the lineage
// graph at all).
func ParseEvent(data []byte) (*ProvenanceEvent, error) {
	var event ProvenanceEvent

	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEventUnmarshalFailed, err)
	}
	if event.FlowFileID == "" {
		return nil, ErrMissingFlowFileID
	}
	return &event, nil
}
