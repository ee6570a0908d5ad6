package evaluator

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/hanpama/fieldcover/internal/eventbus"
	"github.com/hanpama/fieldcover/internal/events"
	"github.com/hanpama/fieldcover/internal/field"
	"github.com/hanpama/fieldcover/internal/provider"
	"github.com/hanpama/fieldcover/internal/reqid"
	"github.com/hanpama/fieldcover/internal/setcover"
)

// Evaluator plans and executes field queries over a fixed set of providers.
type Evaluator struct {
	universe *field.Universe
	registry *provider.Registry
	solver   setcover.Greedy
	logger   zerolog.Logger
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithTiePolicy selects how the solver breaks equal-overlap ties.
func WithTiePolicy(p setcover.TiePolicy) Option {
	return func(e *Evaluator) { e.solver.Policy = p }
}

// WithLogger sets the logger used for per-evaluation debug output.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Evaluator) { e.logger = l }
}

// New validates providers against u and returns a ready Evaluator.
func New(u *field.Universe, providers []provider.Provider, opts ...Option) (*Evaluator, error) {
	reg, err := provider.NewRegistry(u, providers...)
	if err != nil {
		return nil, err
	}
	e := &Evaluator{
		universe: u,
		registry: reg,
		solver:   setcover.Greedy{Policy: setcover.TightestOneWins},
		logger:   zerolog.Nop(),
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Universe returns the field universe the Evaluator answers queries over.
func (e *Evaluator) Universe() *field.Universe { return e.universe }

// Registry returns the provider registry.
func (e *Evaluator) Registry() *provider.Registry { return e.registry }

// TiePolicy returns the configured tie policy.
func (e *Evaluator) TiePolicy() setcover.TiePolicy { return e.solver.Policy }

// Plan is the provider selection for one query.
type Plan struct {
	Query []string
	// Slots holds the canonical position of each query field.
	Slots  []int
	Target field.FieldSet
	// Steps are the selected providers in priority order: Steps[0] was
	// picked first and wins on shared fields.
	Steps []*provider.Entry
}

// Providers returns the names of the selected providers in priority order.
func (p *Plan) Providers() []string {
	out := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		out[i] = s.Name()
	}
	return out
}

// Plan selects the providers for query without running them.
func (e *Evaluator) Plan(query []string) (*Plan, error) {
	slots, err := e.universe.OrderedList(query...)
	if err != nil {
		var dup *field.DuplicateFieldError
		if errors.As(err, &dup) {
			return nil, &DuplicateQueryFieldError{Field: dup.Field, Err: dup}
		}
		return nil, err
	}
	target := e.universe.SetOf(slots)
	winners, err := e.solver.Solve(target, e.registry.Candidates())
	if err != nil {
		return nil, err
	}
	steps := make([]*provider.Entry, len(winners))
	for i, w := range winners {
		entry, err := e.registry.Resolve(w)
		if err != nil {
			return nil, err
		}
		steps[i] = entry
	}
	return &Plan{
		Query:  append([]string(nil), query...),
		Slots:  slots,
		Target: target,
		Steps:  steps,
	}, nil
}

type slot struct {
	value   any
	written bool
}

// Eval answers query from input. When log is non-nil it is reset and then
// receives the name of every provider that ran.
func (e *Evaluator) Eval(ctx context.Context, query []string, input any, log ExecutionLog) (res *Result, err error) {
	if log == nil {
		log = NopLog{}
	}
	log.Reset()
	ctx, _ = reqid.Ensure(ctx)
	ctx, _ = reqid.NewScope(ctx)

	start := time.Now()
	var ran []string
	eventbus.Publish(ctx, events.EvalStart{Query: query})
	defer func() {
		eventbus.Publish(ctx, events.EvalFinish{Query: query, Providers: ran, Err: err, Duration: time.Since(start)})
	}()

	plan, err := e.Plan(query)
	if err != nil {
		return nil, err
	}
	e.logger.Debug().Strs("query", query).Strs("plan", plan.Providers()).Msg("planned")

	record := make([]slot, e.universe.Len())
	for i := len(plan.Steps) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entry := plan.Steps[i]
		if err := e.run(ctx, entry, input, record); err != nil {
			return nil, err
		}
		ran = append(ran, entry.Name())
		log.Record(entry.Name())
	}

	return project(plan, record)
}

// project reads the queried slots of record in query order. A complete
// cover leaves no queried slot unwritten; UnpopulatedFieldError guards
// that invariant rather than reporting an expected outcome.
func project(plan *Plan, record []slot) (*Result, error) {
	res := &Result{Fields: plan.Query, Values: make([]any, len(plan.Slots))}
	for i, pos := range plan.Slots {
		s := record[pos]
		if !s.written {
			return nil, &UnpopulatedFieldError{Field: plan.Query[i]}
		}
		res.Values[i] = s.value
	}
	return res, nil
}

func (e *Evaluator) run(ctx context.Context, entry *provider.Entry, input any, record []slot) (err error) {
	name := entry.Name()
	outputs := entry.Provider.Outputs()
	start := time.Now()
	eventbus.Publish(ctx, events.ProviderStart{Provider: name, Outputs: outputs})
	defer func() {
		eventbus.Publish(ctx, events.ProviderFinish{Provider: name, Outputs: outputs, Err: err, Duration: time.Since(start)})
	}()

	vals, err := entry.Provider.Compute(ctx, input)
	if err != nil {
		return err
	}
	if len(vals) != len(entry.Slots) {
		return &ProviderOutputError{Provider: name, Want: len(entry.Slots), Got: len(vals)}
	}
	for i, pos := range entry.Slots {
		f := e.universe.At(pos)
		if !f.Kind.Check(vals[i]) {
			return &FieldKindError{Provider: name, Field: f.Name, Kind: f.Kind, Value: vals[i]}
		}
	}
	for i, pos := range entry.Slots {
		record[pos] = slot{value: vals[i], written: true}
	}
	e.logger.Debug().Str("provider", name).Dur("took", time.Since(start)).Msg("provider done")
	return nil
}
