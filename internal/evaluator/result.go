package evaluator

import "fmt"

// Result holds the queried values in query order.
type Result struct {
	Fields []string
	Values []any
}

// Len returns the number of queried fields.
func (r *Result) Len() int { return len(r.Values) }

// Get returns the value of a queried field by name.
func (r *Result) Get(name string) (any, bool) {
	for i, f := range r.Fields {
		if f == name {
			return r.Values[i], true
		}
	}
	return nil, false
}

// Map returns the values keyed by field name.
func (r *Result) Map() map[string]any {
	out := make(map[string]any, len(r.Fields))
	for i, f := range r.Fields {
		out[f] = r.Values[i]
	}
	return out
}

// Value returns the named field of r converted to T.
func Value[T any](r *Result, name string) (T, error) {
	var zero T
	v, ok := r.Get(name)
	if !ok {
		return zero, fmt.Errorf("field %q not in result", name)
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("field %q holds %T, not %T", name, v, zero)
	}
	return t, nil
}
