package field

import "github.com/bits-and-blooms/bitset"

// Universe is an ordered, duplicate-free list of fields. The declaration
// order is the canonical bit order for every FieldSet built from it.
type Universe struct {
	fields []Field
	index  map[string]int
	full   FieldSet
}

// Declare builds a Universe from fields in canonical order.
func Declare(fields ...Field) (*Universe, error) {
	u := &Universe{
		fields: make([]Field, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	for i, f := range fields {
		if f.Name == "" {
			return nil, &InvalidFieldError{Index: i, Reason: "empty name"}
		}
		if !f.Kind.Valid() {
			return nil, &InvalidFieldError{Index: i, Reason: "unknown kind " + f.Kind.String()}
		}
		if prev, ok := u.index[f.Name]; ok {
			return nil, &DuplicateFieldError{Field: f.Name, Positions: [2]int{prev, i}}
		}
		u.index[f.Name] = i
		u.fields[i] = f
	}
	bits := bitset.New(uint(len(fields)))
	for i := range fields {
		bits.Set(uint(i))
	}
	u.full = FieldSet{u: u, bits: bits}
	return u, nil
}

// MustDeclare is like Declare but panics on error. Intended for package-level
// fixtures and tests.
func MustDeclare(fields ...Field) *Universe {
	u, err := Declare(fields...)
	if err != nil {
		panic(err)
	}
	return u
}

// Len returns the number of fields in the universe.
func (u *Universe) Len() int { return len(u.fields) }

// Fields returns the fields in canonical order.
func (u *Universe) Fields() []Field {
	out := make([]Field, len(u.fields))
	copy(out, u.fields)
	return out
}

// At returns the field at canonical position i.
func (u *Universe) At(i int) Field { return u.fields[i] }

// Field looks up a field by name.
func (u *Universe) Field(name string) (Field, bool) {
	i, ok := u.index[name]
	if !ok {
		return Field{}, false
	}
	return u.fields[i], true
}

// Index returns the canonical position of name.
func (u *Universe) Index(name string) (int, bool) {
	i, ok := u.index[name]
	return i, ok
}

// Empty returns the empty set of this universe.
func (u *Universe) Empty() FieldSet {
	return FieldSet{u: u, bits: bitset.New(uint(len(u.fields)))}
}

// Full returns the set containing every field.
func (u *Universe) Full() FieldSet { return u.full }

// Set converts names to a FieldSet. Order is irrelevant and repeated names
// are folded together.
func (u *Universe) Set(names ...string) (FieldSet, error) {
	bits := bitset.New(uint(len(u.fields)))
	for _, n := range names {
		i, ok := u.index[n]
		if !ok {
			return FieldSet{}, &UnknownFieldError{Field: n}
		}
		bits.Set(uint(i))
	}
	return FieldSet{u: u, bits: bits}, nil
}

// SetOf builds a FieldSet from canonical positions.
func (u *Universe) SetOf(positions []int) FieldSet {
	bits := bitset.New(uint(len(u.fields)))
	for _, p := range positions {
		bits.Set(uint(p))
	}
	return FieldSet{u: u, bits: bits}
}

// OrderedList maps names, in caller order, to canonical positions. Unlike
// Set it rejects repeated names.
func (u *Universe) OrderedList(names ...string) ([]int, error) {
	out := make([]int, len(names))
	seen := make(map[string]int, len(names))
	for i, n := range names {
		if prev, ok := seen[n]; ok {
			return nil, &DuplicateFieldError{Field: n, Positions: [2]int{prev, i}}
		}
		seen[n] = i
		p, ok := u.index[n]
		if !ok {
			return nil, &UnknownFieldError{Field: n}
		}
		out[i] = p
	}
	return out, nil
}

// Names lists the members of s in canonical order.
func (u *Universe) Names(s FieldSet) []string {
	idx := s.Indices()
	out := make([]string, len(idx))
	for i, p := range idx {
		out[i] = u.fields[p].Name
	}
	return out
}
