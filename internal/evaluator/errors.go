package evaluator

import (
	"fmt"

	"github.com/hanpama/fieldcover/internal/field"
)

// DuplicateQueryFieldError reports a query that names a field twice.
type DuplicateQueryFieldError struct {
	Field string
	Err   *field.DuplicateFieldError
}

func (e *DuplicateQueryFieldError) Error() string {
	return fmt.Sprintf("query names field %q more than once", e.Field)
}

func (e *DuplicateQueryFieldError) Unwrap() error { return e.Err }

// UnpopulatedFieldError reports a queried field that no executed provider
// wrote. It means the registered providers do not jointly cover the field.
type UnpopulatedFieldError struct {
	Field string
}

func (e *UnpopulatedFieldError) Error() string {
	return fmt.Sprintf("field %q was not produced by any executed provider", e.Field)
}

// ProviderOutputError reports a provider returning the wrong number of
// values for its eval list.
type ProviderOutputError struct {
	Provider string
	Want     int
	Got      int
}

func (e *ProviderOutputError) Error() string {
	return fmt.Sprintf("provider %q returned %d values, declared %d", e.Provider, e.Got, e.Want)
}

// FieldKindError reports a provider value that does not match the kind of
// the field it was written to.
type FieldKindError struct {
	Provider string
	Field    string
	Kind     field.Kind
	Value    any
}

func (e *FieldKindError) Error() string {
	return fmt.Sprintf("provider %q wrote %T to field %q of kind %s", e.Provider, e.Value, e.Field, e.Kind)
}
