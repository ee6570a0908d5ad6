// Package stats is a catalog of descriptive-statistics providers over a
// list of numbers. Several providers produce overlapping field sets (the
// sorted copy also yields min and max, the variance also yields the mean),
// which makes the catalog a useful demonstration of cover planning.
package stats

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/hanpama/fieldcover/internal/field"
	"github.com/hanpama/fieldcover/internal/provider"
)

// ErrEmptyInput is returned by every provider for an empty list.
var ErrEmptyInput = fmt.Errorf("stats: empty input: %w", provider.ErrInvalidInput)

// InputTypeError reports input that is not a list of numbers.
type InputTypeError struct {
	Value any
}

func (e *InputTypeError) Error() string {
	return fmt.Sprintf("stats: input must be a list of numbers, got %T", e.Value)
}

func (e *InputTypeError) Unwrap() error { return provider.ErrInvalidInput }

// Fields returns the stats field declarations in their default order.
func Fields() []field.Field {
	return []field.Field{
		{Name: "min", Kind: field.KindFloat, Description: "smallest value"},
		{Name: "max", Kind: field.KindFloat, Description: "largest value"},
		{Name: "avg", Kind: field.KindFloat, Description: "arithmetic mean"},
		{Name: "var", Kind: field.KindFloat, Description: "population variance"},
		{Name: "sorted", Kind: field.KindFloatList, Description: "values in ascending order"},
		{Name: "count", Kind: field.KindInt, Description: "number of values"},
		{Name: "sum", Kind: field.KindFloat, Description: "sum of values"},
		{Name: "median", Kind: field.KindFloat, Description: "middle value, mean of the two middle values for even counts"},
		{Name: "range", Kind: field.KindFloat, Description: "max minus min"},
	}
}

// Universe declares Fields.
func Universe() *field.Universe { return field.MustDeclare(Fields()...) }

type def struct {
	name    string
	outputs []string
	fn      func(xs []float64) []any
}

var catalog = []def{
	{"GetMin", []string{"min"}, func(xs []float64) []any {
		return []any{minOf(xs)}
	}},
	{"GetMax", []string{"max"}, func(xs []float64) []any {
		return []any{maxOf(xs)}
	}},
	{"GetSorted", []string{"sorted", "min", "max"}, func(xs []float64) []any {
		s := sorted(xs)
		return []any{s, s[0], s[len(s)-1]}
	}},
	{"GetAvg", []string{"avg"}, func(xs []float64) []any {
		return []any{mean(xs)}
	}},
	{"GetVar", []string{"var", "avg"}, func(xs []float64) []any {
		m := mean(xs)
		return []any{variance(xs, m), m}
	}},
	{"GetCount", []string{"count"}, func(xs []float64) []any {
		return []any{len(xs)}
	}},
	{"GetSum", []string{"sum", "count"}, func(xs []float64) []any {
		return []any{sum(xs), len(xs)}
	}},
	{"GetMedian", []string{"median", "sorted"}, func(xs []float64) []any {
		s := sorted(xs)
		return []any{median(s), s}
	}},
	{"GetRange", []string{"range", "min", "max"}, func(xs []float64) []any {
		lo, hi := minOf(xs), maxOf(xs)
		return []any{hi - lo, lo, hi}
	}},
}

// Names lists the catalog's provider names in catalog order.
func Names() []string {
	out := make([]string, len(catalog))
	for i, d := range catalog {
		out[i] = d.name
	}
	return out
}

// Providers returns every catalog provider.
func Providers() []provider.Provider {
	out := make([]provider.Provider, len(catalog))
	for i, d := range catalog {
		out[i] = build(d)
	}
	return out
}

// Lookup returns the catalog provider with the given name.
func Lookup(name string) (provider.Provider, bool) {
	for _, d := range catalog {
		if d.name == name {
			return build(d), true
		}
	}
	return nil, false
}

func build(d def) provider.Provider {
	fn := d.fn
	return provider.New(d.name, d.outputs, func(ctx context.Context, input any) ([]any, error) {
		xs, err := ParseInput(input)
		if err != nil {
			return nil, err
		}
		if len(xs) == 0 {
			return nil, ErrEmptyInput
		}
		return fn(xs), nil
	})
}

// ParseInput converts a decoded list of numbers to []float64. It accepts
// []float64, []int, []int64 and []any holding numeric values (the shape
// encoding/json produces).
func ParseInput(input any) ([]float64, error) {
	switch v := input.(type) {
	case []float64:
		return v, nil
	case []int:
		out := make([]float64, len(v))
		for i, n := range v {
			out[i] = float64(n)
		}
		return out, nil
	case []int64:
		out := make([]float64, len(v))
		for i, n := range v {
			out[i] = float64(n)
		}
		return out, nil
	case []any:
		out := make([]float64, len(v))
		for i, n := range v {
			switch n := n.(type) {
			case float64:
				out[i] = n
			case float32:
				out[i] = float64(n)
			case int:
				out[i] = float64(n)
			case int64:
				out[i] = float64(n)
			default:
				return nil, &InputTypeError{Value: input}
			}
		}
		return out, nil
	}
	return nil, &InputTypeError{Value: input}
}

func minOf(xs []float64) float64 {
	m := math.Inf(1)
	for _, x := range xs {
		m = math.Min(m, x)
	}
	return m
}

func maxOf(xs []float64) float64 {
	m := math.Inf(-1)
	for _, x := range xs {
		m = math.Max(m, x)
	}
	return m
}

func sum(xs []float64) float64 {
	var s float64
	for _, x := range xs {
		s += x
	}
	return s
}

func mean(xs []float64) float64 { return sum(xs) / float64(len(xs)) }

func variance(xs []float64, m float64) float64 {
	var acc float64
	for _, x := range xs {
		d := x - m
		acc += d * d
	}
	return acc / float64(len(xs))
}

func sorted(xs []float64) []float64 {
	s := make([]float64, len(xs))
	copy(s, xs)
	sort.Float64s(s)
	return s
}

func median(s []float64) float64 {
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}
