package events

import (
	"time"

	"google.golang.org/grpc/codes"
)

// RemoteCallStart is emitted before a remote Eval call.
type RemoteCallStart struct {
	Method string
	Target string
}

// RemoteCallFinish is emitted after a remote Eval call completes.
type RemoteCallFinish struct {
	Method   string
	Target   string
	Code     codes.Code
	Err      error
	Duration time.Duration
}
