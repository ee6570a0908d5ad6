package field

import "fmt"

// DuplicateFieldError reports a field listed twice where a duplicate-free
// list is required (a universe declaration, a provider output list, a query).
type DuplicateFieldError struct {
	Field string
	// Positions are the two offsets of the repeated name in the input list.
	Positions [2]int
}

func (e *DuplicateFieldError) Error() string {
	return fmt.Sprintf("field %q listed twice (positions %d and %d)", e.Field, e.Positions[0], e.Positions[1])
}

// UnknownFieldError reports a name that is not part of the universe.
type UnknownFieldError struct {
	Field string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown field %q", e.Field)
}

// InvalidFieldError reports a malformed field declaration.
type InvalidFieldError struct {
	Index  int
	Reason string
}

func (e *InvalidFieldError) Error() string {
	return fmt.Sprintf("invalid field at position %d: %s", e.Index, e.Reason)
}
