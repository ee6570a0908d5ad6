package field

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func statsUniverse(t *testing.T) *Universe {
	t.Helper()
	u, err := Declare(
		Field{Name: "min", Kind: KindFloat},
		Field{Name: "max", Kind: KindFloat},
		Field{Name: "avg", Kind: KindFloat},
		Field{Name: "var", Kind: KindFloat},
		Field{Name: "sorted", Kind: KindFloatList},
	)
	require.NoError(t, err)
	return u
}

func TestDeclare_RejectsDuplicate(t *testing.T) {
	_, err := Declare(Field{Name: "a"}, Field{Name: "b"}, Field{Name: "a"})
	var dup *DuplicateFieldError
	require.ErrorAs(t, err, &dup)
	require.Equal(t, "a", dup.Field)
	require.Equal(t, [2]int{0, 2}, dup.Positions)
}

func TestDeclare_RejectsInvalid(t *testing.T) {
	_, err := Declare(Field{Name: ""})
	var inv *InvalidFieldError
	require.ErrorAs(t, err, &inv)

	_, err = Declare(Field{Name: "x", Kind: Kind(99)})
	require.ErrorAs(t, err, &inv)
	require.Equal(t, 0, inv.Index)
}

func TestSet_OrderIndependent(t *testing.T) {
	u := statsUniverse(t)
	a, err := u.Set("min", "sorted", "avg")
	require.NoError(t, err)
	b, err := u.Set("avg", "min", "sorted")
	require.NoError(t, err)
	require.True(t, a.Equal(b))
	require.Equal(t, a.Key(), b.Key())
	require.Equal(t, 3, a.Len())
	if diff := cmp.Diff([]int{0, 2, 4}, a.Indices()); diff != "" {
		t.Fatalf("indices mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, "{min,avg,sorted}", a.String())
}

func TestSet_UnknownField(t *testing.T) {
	u := statsUniverse(t)
	_, err := u.Set("min", "median")
	var unk *UnknownFieldError
	require.ErrorAs(t, err, &unk)
	require.Equal(t, "median", unk.Field)
}

func TestOrderedList(t *testing.T) {
	u := statsUniverse(t)
	got, err := u.OrderedList("sorted", "min", "var")
	require.NoError(t, err)
	if diff := cmp.Diff([]int{4, 0, 3}, got); diff != "" {
		t.Fatalf("positions mismatch (-want +got):\n%s", diff)
	}

	_, err = u.OrderedList("min", "max", "min")
	var dup *DuplicateFieldError
	require.True(t, errors.As(err, &dup))
	require.Equal(t, [2]int{0, 2}, dup.Positions)
}

func TestFieldSet_Algebra(t *testing.T) {
	u := statsUniverse(t)
	ab, _ := u.Set("min", "max")
	bc, _ := u.Set("max", "avg")
	require.Equal(t, 1, ab.Overlap(bc))
	require.Equal(t, "{min}", ab.Without(bc).String())
	require.Equal(t, "{min,max,avg}", ab.Union(bc).String())
	require.True(t, ab.Union(bc).Contains(ab))
	require.False(t, ab.Contains(bc))
	require.True(t, ab.Contains(u.Empty()))
	require.True(t, ab.Without(ab).IsEmpty())
	require.Equal(t, 5, u.Full().Len())
	require.True(t, u.Full().Has(4))
	require.False(t, ab.Has(4))

	// receivers are left untouched
	require.Equal(t, "{min,max}", ab.String())
}

func TestFieldSet_DifferentUniverses(t *testing.T) {
	u1 := statsUniverse(t)
	u2 := statsUniverse(t)
	a, _ := u1.Set("min")
	b, _ := u2.Set("min")
	require.False(t, a.Equal(b))
	require.Panics(t, func() { a.Overlap(b) })
}

func TestFieldSet_ZeroValue(t *testing.T) {
	var s FieldSet
	require.True(t, s.IsEmpty())
	require.Equal(t, 0, s.Len())
	require.Equal(t, "", s.Key())
	require.Nil(t, s.Indices())
}

func TestNames_CanonicalOrder(t *testing.T) {
	u := statsUniverse(t)
	s, _ := u.Set("sorted", "min")
	if diff := cmp.Diff([]string{"min", "sorted"}, u.Names(s)); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}
}

func TestKind_Check(t *testing.T) {
	cases := []struct {
		kind Kind
		v    any
		ok   bool
	}{
		{KindAny, nil, true},
		{KindInt, 3, true},
		{KindInt, int64(3), true},
		{KindInt, 3.0, false},
		{KindFloat, 3.5, true},
		{KindFloat, "3.5", false},
		{KindString, "x", true},
		{KindBool, true, true},
		{KindIntList, []int{1}, true},
		{KindFloatList, []float64{1}, true},
		{KindFloatList, []int{1}, false},
	}
	for _, c := range cases {
		require.Equal(t, c.ok, c.kind.Check(c.v), "%s check %#v", c.kind, c.v)
	}
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("Float_List")
	require.NoError(t, err)
	require.Equal(t, KindFloatList, k)
	k, err = ParseKind("")
	require.NoError(t, err)
	require.Equal(t, KindAny, k)
	_, err = ParseKind("decimal")
	require.Error(t, err)
}
