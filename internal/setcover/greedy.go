// Package setcover selects, for a target FieldSet, an ordered sequence of
// candidate sets whose union covers it.
//
// The solver is the classic greedy heuristic: at each step it takes the
// candidate overlapping the still-uncovered remainder the most, removes the
// winner's fields from the remainder and repeats. It does not promise a
// minimum-cardinality cover. Ties on overlap are broken by a TiePolicy and,
// after that, by candidate index, so results are deterministic.
//
// The order of the returned winners is meaningful to callers: the first
// winner is the one the heuristic valued most.
package setcover

import (
	"fmt"

	"github.com/hanpama/fieldcover/internal/field"
)

// UncoverableTargetError reports that no candidate overlaps what is left
// of the target.
type UncoverableTargetError struct {
	Target    field.FieldSet
	Remaining field.FieldSet
}

func (e *UncoverableTargetError) Error() string {
	return fmt.Sprintf("target %s cannot be covered: no candidate provides %s", e.Target, e.Remaining)
}

// Greedy is the greedy cover solver.
type Greedy struct {
	Policy TiePolicy
}

// Solve returns the winning candidate sets in selection order.
func (g Greedy) Solve(target field.FieldSet, candidates []field.FieldSet) ([]field.FieldSet, error) {
	idx, err := g.SolveIndices(target, candidates)
	if err != nil {
		return nil, err
	}
	out := make([]field.FieldSet, len(idx))
	for i, j := range idx {
		out[i] = candidates[j]
	}
	return out, nil
}

// SolveIndices is Solve reporting positions in candidates instead of sets.
// A candidate may be picked at most once: after it wins, it no longer
// overlaps the remainder.
func (g Greedy) SolveIndices(target field.FieldSet, candidates []field.FieldSet) ([]int, error) {
	var result []int
	remaining := target
	for !remaining.IsEmpty() {
		winner := g.winner(remaining, candidates)
		if winner < 0 {
			return nil, &UncoverableTargetError{Target: target, Remaining: remaining}
		}
		result = append(result, winner)
		remaining = remaining.Without(candidates[winner])
	}
	return result, nil
}

// winner picks the best candidate against remaining, or -1 when none
// overlaps it at all.
func (g Greedy) winner(remaining field.FieldSet, candidates []field.FieldSet) int {
	best, bestOverlap := -1, 0
	for i, c := range candidates {
		ov := remaining.Overlap(c)
		if ov == 0 {
			continue
		}
		switch {
		case best < 0, ov > bestOverlap:
			best, bestOverlap = i, ov
		case ov == bestOverlap && g.Policy.prefersLater(candidates[best].Len(), c.Len()):
			best = i
		}
	}
	return best
}
