package events

import (
	"net/http"
	"time"
)

// HTTPStart is emitted when an HTTP request is received.
type HTTPStart struct {
	Request *http.Request
}

// HTTPFinish is emitted after the handler completes. Queries counts the
// evaluations the request carried (more than one for batches).
type HTTPFinish struct {
	Request  *http.Request
	Status   int
	Queries  int
	Duration time.Duration
}
