package evaluator

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/fieldcover/internal/field"
	"github.com/hanpama/fieldcover/internal/provider"
	"github.com/hanpama/fieldcover/internal/reqid"
	"github.com/hanpama/fieldcover/internal/setcover"
	"github.com/hanpama/fieldcover/internal/stats"
)

var input = []float64{1, 5, 8, 2, 6, 3}

func float(name string) field.Field { return field.Field{Name: name, Kind: field.KindFloat} }

func statsEvaluator(t *testing.T, order ...string) *Evaluator {
	t.Helper()
	if len(order) == 0 {
		order = []string{"min", "max", "avg", "var", "sorted"}
	}
	fields := make([]field.Field, len(order))
	for i, n := range order {
		fields[i] = float(n)
		if n == "sorted" {
			fields[i].Kind = field.KindFloatList
		}
	}
	u := field.MustDeclare(fields...)

	var ps []provider.Provider
	for _, name := range []string{"GetMin", "GetMax", "GetSorted", "GetAvg", "GetVar"} {
		p, ok := stats.Lookup(name)
		require.True(t, ok, name)
		ps = append(ps, p)
	}
	ev, err := New(u, ps)
	require.NoError(t, err)
	return ev
}

var approx = cmpopts.EquateApprox(0, 1e-3)

func TestEval_StatsScenarios(t *testing.T) {
	cases := []struct {
		query     []string
		want      []any
		providers []string
	}{
		{[]string{"min"}, []any{1.0}, []string{"GetMin"}},
		{[]string{"max", "sorted"}, []any{8.0, []float64{1, 2, 3, 5, 6, 8}}, []string{"GetSorted"}},
		{[]string{"var", "avg"}, []any{5.806, 4.167}, []string{"GetVar"}},
		{[]string{"min", "var", "avg"}, []any{1.0, 5.806, 4.167}, []string{"GetMin", "GetVar"}},
		{[]string{"min", "max", "avg", "var"}, []any{1.0, 8.0, 4.167, 5.806}, []string{"GetSorted", "GetVar"}},
	}
	for _, order := range [][]string{
		{"min", "max", "avg", "var", "sorted"},
		{"sorted", "var", "avg", "max", "min"},
	} {
		ev := statsEvaluator(t, order...)
		for _, c := range cases {
			log := NewSetLog()
			res, err := ev.Eval(context.Background(), c.query, input, log)
			require.NoError(t, err, "query %v", c.query)
			if diff := cmp.Diff(c.want, res.Values, approx); diff != "" {
				t.Errorf("order %v query %v values mismatch (-want +got):\n%s", order, c.query, diff)
			}
			if diff := cmp.Diff(c.providers, log.Providers()); diff != "" {
				t.Errorf("order %v query %v providers mismatch (-want +got):\n%s", order, c.query, diff)
			}
		}
	}
}

func TestEval_QueryOrderDoesNotChangeValues(t *testing.T) {
	ev := statsEvaluator(t)
	a, err := ev.Eval(context.Background(), []string{"min", "max", "avg", "var"}, input, nil)
	require.NoError(t, err)
	b, err := ev.Eval(context.Background(), []string{"var", "avg", "max", "min"}, input, nil)
	require.NoError(t, err)
	if diff := cmp.Diff(a.Map(), b.Map()); diff != "" {
		t.Fatalf("reordered query mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, []string{"var", "avg", "max", "min"}, b.Fields)
}

func TestEval_Idempotent(t *testing.T) {
	ev := statsEvaluator(t)
	log := NewSetLog()
	first, err := ev.Eval(context.Background(), []string{"min", "var", "avg"}, input, log)
	require.NoError(t, err)
	firstLog := log.Providers()
	for i := 0; i < 3; i++ {
		got, err := ev.Eval(context.Background(), []string{"min", "var", "avg"}, input, log)
		require.NoError(t, err)
		if diff := cmp.Diff(first, got); diff != "" {
			t.Fatalf("run %d result mismatch (-want +got):\n%s", i, diff)
		}
		require.Equal(t, firstLog, log.Providers())
	}
}

type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(name string) {
	r.mu.Lock()
	r.calls = append(r.calls, name)
	r.mu.Unlock()
}

// tagged produces the provider's own name for every output.
func tagged(rec *recorder, name string, outputs ...string) provider.Provider {
	return provider.New(name, outputs, func(ctx context.Context, input any) ([]any, error) {
		rec.add(name)
		vals := make([]any, len(outputs))
		for i := range vals {
			vals[i] = name
		}
		return vals, nil
	})
}

func abcde() *field.Universe {
	return field.MustDeclare(
		field.Field{Name: "a"}, field.Field{Name: "b"}, field.Field{Name: "c"},
		field.Field{Name: "d"}, field.Field{Name: "e"},
	)
}

func TestEval_HigherPriorityWinsSharedFields(t *testing.T) {
	rec := &recorder{}
	// First picks AB, then CE, then BD; BD runs first and AB runs last.
	ev, err := New(abcde(), []provider.Provider{
		tagged(rec, "AB", "a", "b"),
		tagged(rec, "BD", "b", "d"),
		tagged(rec, "CE", "c", "e"),
		tagged(rec, "BE", "b", "e"),
	}, WithTiePolicy(setcover.FirstOneWins))
	require.NoError(t, err)

	plan, err := ev.Plan([]string{"a", "b", "c", "d", "e"})
	require.NoError(t, err)
	require.Equal(t, []string{"AB", "CE", "BD"}, plan.Providers())

	res, err := ev.Eval(context.Background(), []string{"e", "d", "c", "b", "a"}, nil, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"BD", "CE", "AB"}, rec.calls)
	if diff := cmp.Diff([]any{"CE", "BD", "CE", "AB", "AB"}, res.Values); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}
}

func TestEval_LastOneWinsRunsEveryOverlappingProvider(t *testing.T) {
	rec := &recorder{}
	ev, err := New(abcde(), []provider.Provider{
		tagged(rec, "AB", "a", "b"),
		tagged(rec, "BD", "b", "d"),
		tagged(rec, "CE", "c", "e"),
		tagged(rec, "BE", "b", "e"),
	}, WithTiePolicy(setcover.LastOneWins))
	require.NoError(t, err)
	require.Equal(t, setcover.LastOneWins, ev.TiePolicy())

	log := NewSetLog()
	res, err := ev.Eval(context.Background(), []string{"a", "b", "c", "d", "e"}, nil, log)
	require.NoError(t, err)
	require.Equal(t, []string{"AB", "BD", "BE", "CE"}, log.Providers())
	// Winners are BE, CE, BD, AB; BE is first so it keeps b and e.
	if diff := cmp.Diff([]any{"AB", "BE", "CE", "BD", "BE"}, res.Values); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}
}

func TestEval_DefaultPolicyIsTightest(t *testing.T) {
	ev := statsEvaluator(t)
	require.Equal(t, setcover.TightestOneWins, ev.TiePolicy())
}

func TestEval_Errors(t *testing.T) {
	ctx := context.Background()
	ev := statsEvaluator(t)

	_, err := ev.Eval(ctx, []string{"min", "avg", "min"}, input, nil)
	var dup *DuplicateQueryFieldError
	require.ErrorAs(t, err, &dup)
	require.Equal(t, "min", dup.Field)

	_, err = ev.Eval(ctx, []string{"median"}, input, nil)
	var unk *field.UnknownFieldError
	require.ErrorAs(t, err, &unk)

	_, err = ev.Eval(ctx, []string{"min"}, []float64{}, nil)
	require.ErrorIs(t, err, stats.ErrEmptyInput)

	_, err = ev.Eval(ctx, []string{"min"}, "nope", nil)
	var typ *stats.InputTypeError
	require.ErrorAs(t, err, &typ)
}

func TestEval_Uncoverable(t *testing.T) {
	rec := &recorder{}
	ev, err := New(abcde(), []provider.Provider{tagged(rec, "AB", "a", "b")})
	require.NoError(t, err)
	log := NewSetLog()
	log.Record("stale")
	_, err = ev.Eval(context.Background(), []string{"a", "c"}, nil, log)
	var unc *setcover.UncoverableTargetError
	require.ErrorAs(t, err, &unc)
	require.Equal(t, "{c}", unc.Remaining.String())
	require.Empty(t, log.Providers())
	require.Empty(t, rec.calls)
}

func TestEval_EmptyQuery(t *testing.T) {
	ev, err := New(abcde(), nil)
	require.NoError(t, err)
	res, err := ev.Eval(context.Background(), nil, nil, nil)
	require.NoError(t, err)
	require.Equal(t, 0, res.Len())
}

func TestEval_ProviderErrorPropagatesUnchanged(t *testing.T) {
	boom := errors.New("boom")
	ok := false
	ev, err := New(abcde(), []provider.Provider{
		provider.New("A", []string{"a"}, func(context.Context, any) ([]any, error) { return nil, boom }),
		provider.New("B", []string{"b"}, func(context.Context, any) ([]any, error) {
			ok = true
			return []any{1}, nil
		}),
	})
	require.NoError(t, err)
	res, err := ev.Eval(context.Background(), []string{"a", "b"}, nil, nil)
	require.Same(t, boom, err)
	require.Nil(t, res)
	require.True(t, ok)
}

func TestEval_OutputContract(t *testing.T) {
	u := field.MustDeclare(field.Field{Name: "n", Kind: field.KindInt}, field.Field{Name: "s", Kind: field.KindString})

	ev, err := New(u, []provider.Provider{
		provider.New("Short", []string{"n", "s"}, func(context.Context, any) ([]any, error) { return []any{1}, nil }),
	})
	require.NoError(t, err)
	_, err = ev.Eval(context.Background(), []string{"n"}, nil, nil)
	var arity *ProviderOutputError
	require.ErrorAs(t, err, &arity)
	require.Equal(t, 2, arity.Want)
	require.Equal(t, 1, arity.Got)

	ev, err = New(u, []provider.Provider{
		provider.New("Wrong", []string{"n", "s"}, func(context.Context, any) ([]any, error) { return []any{1, 2}, nil }),
	})
	require.NoError(t, err)
	_, err = ev.Eval(context.Background(), []string{"n"}, nil, nil)
	var kind *FieldKindError
	require.ErrorAs(t, err, &kind)
	require.Equal(t, "s", kind.Field)
}

func TestEval_CanceledContext(t *testing.T) {
	rec := &recorder{}
	ev, err := New(abcde(), []provider.Provider{tagged(rec, "A", "a")})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = ev.Eval(ctx, []string{"a"}, nil, nil)
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, rec.calls)
}

func TestEval_Concurrent(t *testing.T) {
	ev := statsEvaluator(t)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log := NewSetLog()
			res, err := ev.Eval(context.Background(), []string{"min", "max", "avg", "var"}, input, log)
			if err != nil {
				t.Error(err)
				return
			}
			if v, _ := Value[float64](res, "max"); v != 8 {
				t.Errorf("max = %v", v)
			}
		}()
	}
	wg.Wait()
}

func TestResult_Value(t *testing.T) {
	res := &Result{Fields: []string{"min", "sorted"}, Values: []any{1.0, []float64{1, 2}}}
	v, err := Value[float64](res, "min")
	require.NoError(t, err)
	require.Equal(t, 1.0, v)
	_, err = Value[string](res, "min")
	require.Error(t, err)
	_, err = Value[float64](res, "max")
	require.Error(t, err)
}

func TestProject_UnwrittenSlot(t *testing.T) {
	plan := &Plan{Query: []string{"b", "a"}, Slots: []int{1, 0}}
	record := make([]slot, 2)
	record[0] = slot{value: "A", written: true}

	_, err := project(plan, record)
	var unpop *UnpopulatedFieldError
	require.ErrorAs(t, err, &unpop)
	require.Equal(t, "b", unpop.Field)

	record[1] = slot{value: "B", written: true}
	res, err := project(plan, record)
	require.NoError(t, err)
	require.Equal(t, []any{"B", "A"}, res.Values)
}

func TestEval_ProvidersSeeRequestID(t *testing.T) {
	var got []string
	ev, err := New(abcde(), []provider.Provider{
		provider.New("A", []string{"a"}, func(ctx context.Context, _ any) ([]any, error) {
			id, _ := reqid.FromContext(ctx)
			got = append(got, id)
			return []any{1}, nil
		}),
	})
	require.NoError(t, err)

	_, err = ev.Eval(reqid.WithID(context.Background(), "given"), []string{"a"}, nil, nil)
	require.NoError(t, err)
	_, err = ev.Eval(context.Background(), []string{"a"}, nil, nil)
	require.NoError(t, err)
	require.Equal(t, "given", got[0])
	require.NotEmpty(t, got[1])
}
