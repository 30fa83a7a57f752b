package stats

import "errors"

var (
	ErrUnattributableEvent = errors.New("event has no resolvable feed name")
	ErrStaleWindow         = errors.New("window already flushed")
)
