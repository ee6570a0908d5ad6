package grpctp

import (
	"time"

	"google.golang.org/grpc"
)

// Options configures the transport.
//
// Defaults:
//   - ConnsPerEndpoint: 2
//   - RPCTimeout:       3s (used only if the incoming context has no deadline)
//   - DialOptions:      insecure credentials
type Options struct {
	Provider EndpointProvider

	ConnsPerEndpoint int
	RPCTimeout       time.Duration

	DialOptions []grpc.DialOption
}

type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		ConnsPerEndpoint: 2,
		RPCTimeout:       3 * time.Second,
	}
}

func WithProvider(p EndpointProvider) Option { return func(o *Options) { o.Provider = p } }
func WithConnsPerEndpoint(n int) Option      { return func(o *Options) { o.ConnsPerEndpoint = n } }
func WithRPCTimeout(d time.Duration) Option  { return func(o *Options) { o.RPCTimeout = d } }
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(o *Options) { o.DialOptions = opts }
}
