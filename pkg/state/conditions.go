package state

import (
	"fmt"

	"github.com/quillforge/fable/pkg/story"
)

// Open evaluates a route's gate clauses against a snapshot. All clauses
// must hold (logical AND); an empty clause list is always open.
//
// A clause whose variable is missing from the snapshot returns false
// with ErrMissingState — the caller treats the route as closed but keeps
// playing. An operator outside the closed set returns ErrInvalidOperator,
// which is fatal for the transition.
func Open(conds []story.Condition, snap Snapshot) (bool, error) {
	for _, c := range conds {
		entry, err := snap.Get(c.VariableID)
		if err != nil {
			return false, err
		}

		var hold bool
		if entry.Type == story.VarNumber {
			hold, err = compareNumbers(Coerce(entry.Value), c.Operator, Coerce(c.Operand))
		} else {
			hold, err = compareStrings(entry.Value, c.Operator, c.Operand)
		}
		if err != nil {
			return false, err
		}
		if !hold {
			return false, nil
		}
	}
	return true, nil
}

// compareNumbers applies IEEE float comparison: every ordering and
// equality against NaN is false, NE against NaN is true.
func compareNumbers(a float64, op story.ConditionOperator, b float64) (bool, error) {
	switch op {
	case story.OpEQ:
		return a == b, nil
	case story.OpNE:
		return a != b, nil
	case story.OpGT:
		return a > b, nil
	case story.OpGTE:
		return a >= b, nil
	case story.OpLT:
		return a < b, nil
	case story.OpLTE:
		return a <= b, nil
	}
	return false, fmt.Errorf("%w: %q", ErrInvalidOperator, op)
}

func compareStrings(a string, op story.ConditionOperator, b string) (bool, error) {
	switch op {
	case story.OpEQ:
		return a == b, nil
	case story.OpNE:
		return a != b, nil
	case story.OpGT:
		return a > b, nil
	case story.OpGTE:
		return a >= b, nil
	case story.OpLT:
		return a < b, nil
	case story.OpLTE:
		return a <= b, nil
	}
	return false, fmt.Errorf("%w: %q", ErrInvalidOperator, op)
}
