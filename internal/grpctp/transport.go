// Package grpctp is the client side of remote evaluation: it resolves a
// target to endpoints, keeps a few client connections per endpoint and
// invokes dynamic unary methods on them.
package grpctp

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/hanpama/fieldcover/internal/eventbus"
	"github.com/hanpama/fieldcover/internal/events"
	"github.com/hanpama/fieldcover/internal/reqid"
)

// RequestIDHeader carries the caller's request ID to the remote side.
const RequestIDHeader = "x-request-id"

// Transport is safe for concurrent use.
type Transport struct {
	opts *Options

	mu     sync.RWMutex
	pools  map[string]*connPool // key: endpoint
	closed atomic.Bool
}

func New(opts ...Option) *Transport {
	o := defaultOptions()
	for _, f := range opts {
		f(o)
	}
	if len(o.DialOptions) == 0 {
		o.DialOptions = []grpc.DialOption{
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithConnectParams(grpc.ConnectParams{Backoff: backoff.DefaultConfig}),
		}
	}
	return &Transport{
		opts:  o,
		pools: make(map[string]*connPool),
	}
}

// Call invokes the unary method on one endpoint of target and decodes the
// reply into a dynamic message of the method's output type.
func (t *Transport) Call(ctx context.Context, target string, method protoreflect.MethodDescriptor, request proto.Message) (resp *dynamicpb.Message, err error) {
	if t.closed.Load() {
		return nil, ErrClosed
	}
	if t.opts.Provider == nil {
		return nil, fmt.Errorf("grpctp: endpoint provider not configured")
	}
	fullMethod := fmt.Sprintf("/%s/%s", method.Parent().FullName(), method.Name())

	if _, ok := ctx.Deadline(); !ok && t.opts.RPCTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.opts.RPCTimeout)
		defer cancel()
	}
	if id, ok := reqid.FromContext(ctx); ok {
		ctx = metadata.AppendToOutgoingContext(ctx, RequestIDHeader, id)
	}

	endpoints, err := t.opts.Provider.Endpoints(ctx, target)
	if err != nil {
		return nil, err
	}
	if len(endpoints) == 0 {
		return nil, ErrNoEndpoints
	}
	endpoint := endpoints[rand.IntN(len(endpoints))]

	cc, err := t.conn(endpoint)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	eventbus.Publish(ctx, events.RemoteCallStart{Method: fullMethod, Target: endpoint})
	defer func() {
		eventbus.Publish(ctx, events.RemoteCallFinish{
			Method:   fullMethod,
			Target:   endpoint,
			Code:     status.Code(err),
			Err:      err,
			Duration: time.Since(start),
		})
	}()

	resp = dynamicpb.NewMessage(method.Output())
	if err = cc.Invoke(ctx, fullMethod, request, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (t *Transport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, p := range t.pools {
		p.close()
	}
	t.pools = map[string]*connPool{}
	return nil
}

// connPool holds a fixed number of lazily created client connections to
// one endpoint and hands them out round-robin.
type connPool struct {
	endpoint string
	opts     *Options

	mu    sync.Mutex
	conns []*grpc.ClientConn
	next  atomic.Uint64
}

func newConnPool(endpoint string, opts *Options) *connPool {
	n := opts.ConnsPerEndpoint
	if n <= 0 {
		n = 2
	}
	return &connPool{
		endpoint: endpoint,
		opts:     opts,
		conns:    make([]*grpc.ClientConn, n),
	}
}

func (p *connPool) get() (*grpc.ClientConn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conns == nil {
		return nil, ErrClosed
	}
	i := int(p.next.Add(1) % uint64(len(p.conns)))
	if cc := p.conns[i]; cc != nil {
		return cc, nil
	}
	cc, err := grpc.NewClient(p.endpoint, p.opts.DialOptions...)
	if err != nil {
		return nil, err
	}
	p.conns[i] = cc
	return cc, nil
}

func (p *connPool) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, cc := range p.conns {
		if cc != nil {
			_ = cc.Close()
		}
	}
	p.conns = nil
}

func (t *Transport) conn(endpoint string) (*grpc.ClientConn, error) {
	t.mu.RLock()
	pool := t.pools[endpoint]
	t.mu.RUnlock()
	if pool == nil {
		t.mu.Lock()
		pool = t.pools[endpoint]
		if pool == nil {
			pool = newConnPool(endpoint, t.opts)
			t.pools[endpoint] = pool
		}
		t.mu.Unlock()
	}
	return pool.get()
}
