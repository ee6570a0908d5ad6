// Package field defines the universe of named data fields and the bitset
// representation used to talk about subsets of it.
//
// A Universe fixes a canonical order over its fields when it is declared.
// Bit i of every FieldSet drawn from that Universe stands for the i-th
// declared field, so two sets are only meaningful together when they come
// from the same Universe. Universes and FieldSets are immutable and safe to
// share between goroutines.
package field

import (
	"fmt"
	"strings"
)

// Kind is the value type carried by a field.
type Kind int

const (
	KindAny Kind = iota
	KindInt
	KindFloat
	KindString
	KindBool
	KindIntList
	KindFloatList
)

var kindNames = map[Kind]string{
	KindAny:       "any",
	KindInt:       "int",
	KindFloat:     "float",
	KindString:    "string",
	KindBool:      "bool",
	KindIntList:   "int_list",
	KindFloatList: "float_list",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// ParseKind maps a kind name ("float", "int_list", ...) to a Kind.
// The empty string means KindAny.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return KindAny, nil
	}
	for k, n := range kindNames {
		if n == s {
			return k, nil
		}
	}
	return KindAny, fmt.Errorf("unknown field kind %q", s)
}

// Check reports whether v is an acceptable value for a field of kind k.
func (k Kind) Check(v any) bool {
	switch k {
	case KindAny:
		return true
	case KindInt:
		switch v.(type) {
		case int, int32, int64:
			return true
		}
	case KindFloat:
		switch v.(type) {
		case float32, float64:
			return true
		}
	case KindString:
		_, ok := v.(string)
		return ok
	case KindBool:
		_, ok := v.(bool)
		return ok
	case KindIntList:
		switch v.(type) {
		case []int, []int64:
			return true
		}
	case KindFloatList:
		_, ok := v.([]float64)
		return ok
	}
	return false
}

// Field is a named data field. Its identity is the name.
type Field struct {
	Name        string
	Kind        Kind
	Description string
}

func (f Field) String() string { return f.Name + ":" + f.Kind.String() }
