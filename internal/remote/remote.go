// Package remote adapts another fieldcover instance into a local Provider.
// The remote side is asked for the provider's outputs in eval-list order
// and the decoded values are handed back to the local Evaluator as if the
// provider had computed them itself.
//
// Both sides must declare the same universe: response field numbers are
// derived from the full set of field names.
package remote

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/hanpama/fieldcover/internal/protoreg"
	"github.com/hanpama/fieldcover/internal/provider"
)

// Caller is implemented by grpctp.Transport.
type Caller interface {
	Call(ctx context.Context, target string, method protoreflect.MethodDescriptor, request proto.Message) (*dynamicpb.Message, error)
}

// Provider evaluates its outputs on a remote Evaluator.
type Provider struct {
	name    string
	outputs []string
	target  string
	reg     *protoreg.Registry
	caller  Caller
	timeout time.Duration
}

// Option configures a Provider.
type Option func(*Provider)

// WithTimeout bounds each remote call. It applies on top of any deadline
// already on the context and of the transport's own RPC timeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) { p.timeout = d }
}

var _ provider.Provider = (*Provider)(nil)

// New returns a provider named name that asks target for outputs. Every
// output must be a field of reg's universe.
func New(name, target string, outputs []string, reg *protoreg.Registry, caller Caller, opts ...Option) (*Provider, error) {
	for _, o := range outputs {
		if _, ok := reg.OutputField(o); !ok {
			return nil, fmt.Errorf("remote provider %q: unknown output %q", name, o)
		}
	}
	p := &Provider{
		name:    name,
		outputs: append([]string(nil), outputs...),
		target:  target,
		reg:     reg,
		caller:  caller,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

func (p *Provider) Name() string { return p.name }

func (p *Provider) Outputs() []string { return append([]string(nil), p.outputs...) }

// Target names the endpoint set calls are sent to.
func (p *Provider) Target() string { return p.target }

func (p *Provider) Compute(ctx context.Context, input any) ([]any, error) {
	req, err := p.reg.NewRequest(p.outputs, input)
	if err != nil {
		return nil, fmt.Errorf("remote %s: %w", p.name, err)
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	resp, err := p.caller.Call(ctx, p.target, p.reg.Method(), req)
	if err != nil {
		return nil, fmt.Errorf("remote %s: %w", p.name, err)
	}
	values, _, err := p.reg.DecodeResponse(resp, p.outputs)
	if err != nil {
		return nil, fmt.Errorf("remote %s: %w", p.name, err)
	}
	return values, nil
}
