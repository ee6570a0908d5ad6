package provider

import (
	"errors"
	"fmt"
)

// ErrInvalidInput is wrapped by provider errors caused by the caller's
// input rather than by the provider itself.
var ErrInvalidInput = errors.New("invalid input")

// InvalidProviderError reports a provider whose eval list is not legal in
// the universe it is registered into.
type InvalidProviderError struct {
	Provider string
	Err      error
}

func (e *InvalidProviderError) Error() string {
	return fmt.Sprintf("provider %q: %v", e.Provider, e.Err)
}

func (e *InvalidProviderError) Unwrap() error { return e.Err }

// DuplicateProviderError reports two providers registered under one name.
type DuplicateProviderError struct {
	Name string
}

func (e *DuplicateProviderError) Error() string {
	return fmt.Sprintf("provider %q registered twice", e.Name)
}

// DuplicateOutputSetError reports two providers declaring the same set of
// output fields. Each output set must resolve to exactly one provider.
type DuplicateOutputSetError struct {
	Existing  string
	Duplicate string
	Set       string
}

func (e *DuplicateOutputSetError) Error() string {
	return fmt.Sprintf("providers %q and %q both declare output set %s", e.Existing, e.Duplicate, e.Set)
}

// UnknownFieldSetError reports a lookup for an output set no provider
// declared.
type UnknownFieldSetError struct {
	Set string
}

func (e *UnknownFieldSetError) Error() string {
	return fmt.Sprintf("no provider declares output set %s", e.Set)
}
