package grpctp

import "errors"

var (
	// ErrNoEndpoints indicates the resolver returned no endpoints for a target.
	ErrNoEndpoints = errors.New("grpctp: no endpoints available")
	// ErrClosed is returned by calls on a closed Transport.
	ErrClosed = errors.New("grpctp: transport closed")
)
