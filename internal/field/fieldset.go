package field

import (
	"strconv"
	"strings"

	"github.com/bits-and-blooms/bitset"
)

// FieldSet is an immutable subset of a Universe. The zero value is an empty
// set that belongs to no universe.
type FieldSet struct {
	u    *Universe
	bits *bitset.BitSet
}

// Universe returns the universe s was drawn from.
func (s FieldSet) Universe() *Universe { return s.u }

// Len is the population count of s.
func (s FieldSet) Len() int {
	if s.bits == nil {
		return 0
	}
	return int(s.bits.Count())
}

// IsEmpty reports whether s has no members.
func (s FieldSet) IsEmpty() bool { return s.bits == nil || s.bits.None() }

// Has reports whether canonical position i is a member.
func (s FieldSet) Has(i int) bool {
	if s.bits == nil || i < 0 {
		return false
	}
	return s.bits.Test(uint(i))
}

// Indices lists member positions in ascending order.
func (s FieldSet) Indices() []int {
	if s.bits == nil {
		return nil
	}
	out := make([]int, 0, s.bits.Count())
	for i, ok := s.bits.NextSet(0); ok; i, ok = s.bits.NextSet(i + 1) {
		out = append(out, int(i))
	}
	return out
}

// Overlap is the population count of s AND o. Both sets must come from the
// same universe.
func (s FieldSet) Overlap(o FieldSet) int {
	if s.bits == nil || o.bits == nil {
		return 0
	}
	s.mustShare(o)
	return int(s.bits.IntersectionCardinality(o.bits))
}

// Without returns s with every member of o removed.
func (s FieldSet) Without(o FieldSet) FieldSet {
	if s.bits == nil || o.bits == nil {
		return s
	}
	s.mustShare(o)
	return FieldSet{u: s.u, bits: s.bits.Difference(o.bits)}
}

// Union returns s OR o.
func (s FieldSet) Union(o FieldSet) FieldSet {
	if s.bits == nil {
		return o
	}
	if o.bits == nil {
		return s
	}
	s.mustShare(o)
	return FieldSet{u: s.u, bits: s.bits.Union(o.bits)}
}

// Contains reports whether every member of o is also in s.
func (s FieldSet) Contains(o FieldSet) bool {
	if o.IsEmpty() {
		return true
	}
	if s.bits == nil {
		return false
	}
	s.mustShare(o)
	return s.bits.IsSuperSet(o.bits)
}

// Equal reports whether s and o come from the same universe and hold the
// same members.
func (s FieldSet) Equal(o FieldSet) bool {
	if s.u != o.u {
		return false
	}
	if s.bits == nil || o.bits == nil {
		return s.IsEmpty() && o.IsEmpty()
	}
	return s.bits.Equal(o.bits)
}

// Key is a stable string form of the member positions, usable as a map key.
// Sets from the same universe have equal keys iff they are Equal.
func (s FieldSet) Key() string {
	idx := s.Indices()
	var b strings.Builder
	for i, p := range idx {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(p))
	}
	return b.String()
}

// String renders the member names, e.g. "{min,max}".
func (s FieldSet) String() string {
	if s.u == nil {
		return "{}"
	}
	return "{" + strings.Join(s.u.Names(s), ",") + "}"
}

func (s FieldSet) mustShare(o FieldSet) {
	if s.u != o.u {
		panic("field: FieldSets from different universes")
	}
}
