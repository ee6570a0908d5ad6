package setcover

import (
	"fmt"
	"strings"
)

// TiePolicy decides between two candidates that overlap the remaining
// target equally.
type TiePolicy int

const (
	// FirstOneWins keeps the earlier candidate.
	FirstOneWins TiePolicy = iota
	// LastOneWins keeps the later candidate.
	LastOneWins
	// TightestOneWins prefers the candidate with fewer fields in total.
	// Equal sizes keep the earlier candidate.
	TightestOneWins
	// LoosestOneWins prefers the candidate with more fields in total.
	// Equal sizes keep the earlier candidate.
	LoosestOneWins
)

func (p TiePolicy) String() string {
	switch p {
	case FirstOneWins:
		return "first"
	case LastOneWins:
		return "last"
	case TightestOneWins:
		return "tightest"
	case LoosestOneWins:
		return "loosest"
	}
	return fmt.Sprintf("TiePolicy(%d)", int(p))
}

// ParseTiePolicy accepts "first", "last", "tightest", "loosest" and the
// long forms ("FirstOneWins", "first_one_wins", ...).
func ParseTiePolicy(s string) (TiePolicy, error) {
	n := strings.ToLower(strings.NewReplacer("_", "", "-", "").Replace(strings.TrimSpace(s)))
	n = strings.TrimSuffix(n, "onewins")
	switch n {
	case "first":
		return FirstOneWins, nil
	case "last":
		return LastOneWins, nil
	case "tightest":
		return TightestOneWins, nil
	case "loosest":
		return LoosestOneWins, nil
	}
	return 0, fmt.Errorf("unknown tie policy %q", s)
}

// prefersLater reports whether a later candidate of size laterLen should
// replace the current best of size bestLen when both overlap equally.
func (p TiePolicy) prefersLater(bestLen, laterLen int) bool {
	switch p {
	case LastOneWins:
		return true
	case TightestOneWins:
		return laterLen < bestLen
	case LoosestOneWins:
		return laterLen > bestLen
	}
	return false
}
