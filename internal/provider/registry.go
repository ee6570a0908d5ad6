package provider

import (
	"errors"

	"github.com/hanpama/fieldcover/internal/field"
)

// Entry is a registered provider together with its validated eval list.
type Entry struct {
	Provider Provider
	// Set is the provider's output set.
	Set field.FieldSet
	// Slots holds the canonical position of each output, in eval-list order.
	Slots []int
}

// Name is shorthand for e.Provider.Name().
func (e *Entry) Name() string { return e.Provider.Name() }

// Registry indexes providers by output set. It is immutable once built.
type Registry struct {
	universe *field.Universe
	entries  []*Entry
	bySet    map[string]*Entry
	byName   map[string]*Entry
}

// NewRegistry validates providers against u and indexes them.
func NewRegistry(u *field.Universe, providers ...Provider) (*Registry, error) {
	r := &Registry{
		universe: u,
		entries:  make([]*Entry, 0, len(providers)),
		bySet:    make(map[string]*Entry, len(providers)),
		byName:   make(map[string]*Entry, len(providers)),
	}
	for _, p := range providers {
		if err := r.add(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) add(p Provider) error {
	name := p.Name()
	if _, ok := r.byName[name]; ok {
		return &DuplicateProviderError{Name: name}
	}
	outputs := p.Outputs()
	if len(outputs) == 0 {
		return &InvalidProviderError{Provider: name, Err: errors.New("empty output list")}
	}
	slots, err := r.universe.OrderedList(outputs...)
	if err != nil {
		return &InvalidProviderError{Provider: name, Err: err}
	}
	set := r.universe.SetOf(slots)
	key := set.Key()
	if prev, ok := r.bySet[key]; ok {
		return &DuplicateOutputSetError{Existing: prev.Name(), Duplicate: name, Set: set.String()}
	}
	e := &Entry{Provider: p, Set: set, Slots: slots}
	r.entries = append(r.entries, e)
	r.bySet[key] = e
	r.byName[name] = e
	return nil
}

// Universe returns the universe the registry validates against.
func (r *Registry) Universe() *field.Universe { return r.universe }

// Len returns the number of registered providers.
func (r *Registry) Len() int { return len(r.entries) }

// Entries returns the providers in registration order.
func (r *Registry) Entries() []*Entry {
	out := make([]*Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Candidates returns the output sets in registration order.
func (r *Registry) Candidates() []field.FieldSet {
	out := make([]field.FieldSet, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Set
	}
	return out
}

// Resolve finds the provider that declared exactly s.
func (r *Registry) Resolve(s field.FieldSet) (*Entry, error) {
	if s.Universe() == r.universe {
		if e, ok := r.bySet[s.Key()]; ok {
			return e, nil
		}
	}
	return nil, &UnknownFieldSetError{Set: s.String()}
}

// Lookup finds a provider by name.
func (r *Registry) Lookup(name string) (*Entry, bool) {
	e, ok := r.byName[name]
	return e, ok
}

// Uncovered lists universe fields that no provider declares, in canonical
// order. Queries naming them can never be satisfied.
func (r *Registry) Uncovered() []string {
	covered := r.universe.Empty()
	for _, e := range r.entries {
		covered = covered.Union(e.Set)
	}
	return r.universe.Names(r.universe.Full().Without(covered))
}
