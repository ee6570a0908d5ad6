package setcover

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/fieldcover/internal/field"
)

func abcde(t *testing.T) *field.Universe {
	t.Helper()
	return field.MustDeclare(
		field.Field{Name: "A"}, field.Field{Name: "B"}, field.Field{Name: "C"},
		field.Field{Name: "D"}, field.Field{Name: "E"},
	)
}

func sets(t *testing.T, u *field.Universe, specs ...[]string) []field.FieldSet {
	t.Helper()
	out := make([]field.FieldSet, len(specs))
	for i, names := range specs {
		s, err := u.Set(names...)
		require.NoError(t, err)
		out[i] = s
	}
	return out
}

func solveNames(t *testing.T, p TiePolicy, target field.FieldSet, cands []field.FieldSet) []string {
	t.Helper()
	got, err := Greedy{Policy: p}.Solve(target, cands)
	require.NoError(t, err)
	out := make([]string, len(got))
	for i, s := range got {
		out[i] = s.String()
	}
	return out
}

func TestGreedy_FirstOneWins(t *testing.T) {
	u := abcde(t)
	cands := sets(t, u, []string{"A", "B"}, []string{"B", "D"}, []string{"C", "E"}, []string{"B", "E"})
	got := solveNames(t, FirstOneWins, u.Full(), cands)
	want := []string{"{A,B}", "{C,E}", "{B,D}"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("cover mismatch (-want +got):\n%s", diff)
	}
}

func TestGreedy_LastOneWins(t *testing.T) {
	u := abcde(t)
	cands := sets(t, u, []string{"A", "B"}, []string{"B", "D"}, []string{"C", "E"}, []string{"B", "E"})
	got := solveNames(t, LastOneWins, u.Full(), cands)
	want := []string{"{B,E}", "{C,E}", "{B,D}", "{A,B}"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("cover mismatch (-want +got):\n%s", diff)
	}
}

func TestGreedy_TightestOneWins(t *testing.T) {
	u := abcde(t)
	cands := sets(t, u, []string{"A", "B", "C", "D"}, []string{"D", "E"}, []string{"E"})
	got := solveNames(t, TightestOneWins, u.Full(), cands)
	want := []string{"{A,B,C,D}", "{E}"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("cover mismatch (-want +got):\n%s", diff)
	}
}

func TestGreedy_LoosestOneWins(t *testing.T) {
	u := abcde(t)
	cands := sets(t, u, []string{"A", "B", "C", "D"}, []string{"D", "E"}, []string{"E"})
	got := solveNames(t, LoosestOneWins, u.Full(), cands)
	want := []string{"{A,B,C,D}", "{D,E}"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("cover mismatch (-want +got):\n%s", diff)
	}
}

func TestGreedy_SizeTieFallsBackToEarlier(t *testing.T) {
	u := abcde(t)
	// both overlap {A} by one and have two fields in total
	cands := sets(t, u, []string{"A", "B"}, []string{"A", "C"})
	target, _ := u.Set("A")
	for _, p := range []TiePolicy{FirstOneWins, TightestOneWins, LoosestOneWins} {
		idx, err := Greedy{Policy: p}.SolveIndices(target, cands)
		require.NoError(t, err)
		require.Equal(t, []int{0}, idx, p.String())
	}
	idx, err := Greedy{Policy: LastOneWins}.SolveIndices(target, cands)
	require.NoError(t, err)
	require.Equal(t, []int{1}, idx)
}

func TestGreedy_OverlapBeatsPolicy(t *testing.T) {
	u := abcde(t)
	cands := sets(t, u, []string{"A"}, []string{"A", "B", "C", "D", "E"})
	target, _ := u.Set("A", "B")
	idx, err := Greedy{Policy: TightestOneWins}.SolveIndices(target, cands)
	require.NoError(t, err)
	require.Equal(t, []int{1}, idx)
}

func TestGreedy_EmptyTarget(t *testing.T) {
	u := abcde(t)
	got, err := Greedy{}.Solve(u.Empty(), nil)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestGreedy_Uncoverable(t *testing.T) {
	u := abcde(t)
	cands := sets(t, u, []string{"A", "B"}, []string{"B", "C"})
	target, _ := u.Set("A", "C", "E")
	_, err := Greedy{}.Solve(target, cands)
	var unc *UncoverableTargetError
	require.ErrorAs(t, err, &unc)
	require.Equal(t, "{E}", unc.Remaining.String())

	_, err = Greedy{}.Solve(target, nil)
	require.ErrorAs(t, err, &unc)
	require.Equal(t, "{A,C,E}", unc.Remaining.String())
}

func TestGreedy_DuplicateCandidates(t *testing.T) {
	u := abcde(t)
	cands := sets(t, u, []string{"A", "B"}, []string{"A", "B"}, []string{"C"})
	target, _ := u.Set("A", "B", "C")
	idx, err := Greedy{Policy: LastOneWins}.SolveIndices(target, cands)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2}, idx)
}

func TestGreedy_CoverIsSuperset(t *testing.T) {
	u := abcde(t)
	cands := sets(t, u,
		[]string{"A"}, []string{"B", "C"}, []string{"C", "D", "E"}, []string{"A", "E"}, []string{"D"},
	)
	all := [][]string{{"A"}, {"B", "E"}, {"A", "C", "D"}, {"A", "B", "C", "D", "E"}, {"D", "E"}}
	for _, p := range []TiePolicy{FirstOneWins, LastOneWins, TightestOneWins, LoosestOneWins} {
		for _, names := range all {
			target, _ := u.Set(names...)
			got, err := Greedy{Policy: p}.Solve(target, cands)
			require.NoError(t, err)
			union := u.Empty()
			for _, s := range got {
				union = union.Union(s)
			}
			require.True(t, union.Contains(target), "%s %v", p, names)
		}
	}
}

func TestParseTiePolicy(t *testing.T) {
	for in, want := range map[string]TiePolicy{
		"first":             FirstOneWins,
		"LastOneWins":       LastOneWins,
		"tightest_one_wins": TightestOneWins,
		" Loosest ":         LoosestOneWins,
	} {
		got, err := ParseTiePolicy(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}
	_, err := ParseTiePolicy("random")
	require.Error(t, err)
}
