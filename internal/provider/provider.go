// Package provider defines the computations an Evaluator schedules and the
// registry that maps a declared output set back to its provider.
package provider

import "context"

// Provider computes a fixed, ordered list of fields from external input.
//
// Compute must return exactly one value per entry of Outputs, in the same
// order. Implementations must be safe for concurrent use and must not call
// back into the Evaluator that runs them.
type Provider interface {
	// Name identifies the provider in logs, events and execution logs.
	Name() string
	// Outputs is the provider's eval list: the fields it produces, in the
	// order Compute returns them.
	Outputs() []string
	Compute(ctx context.Context, input any) ([]any, error)
}

// ComputeFunc is the function form of Provider.Compute.
type ComputeFunc func(ctx context.Context, input any) ([]any, error)

type funcProvider struct {
	name    string
	outputs []string
	fn      ComputeFunc
}

// New adapts fn to a Provider.
func New(name string, outputs []string, fn ComputeFunc) Provider {
	out := make([]string, len(outputs))
	copy(out, outputs)
	return &funcProvider{name: name, outputs: out, fn: fn}
}

func (p *funcProvider) Name() string { return p.name }

func (p *funcProvider) Outputs() []string {
	out := make([]string, len(p.outputs))
	copy(out, p.outputs)
	return out
}

func (p *funcProvider) Compute(ctx context.Context, input any) ([]any, error) {
	return p.fn(ctx, input)
}
