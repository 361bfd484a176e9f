package state

import (
	"github.com/quillforge/fable/pkg/story"
)

// Apply applies a route's mutations to a snapshot in authored order and
// returns the resulting snapshot. Order matters: ADD then MULTIPLY is
// not MULTIPLY then ADD.
//
// With no effects the same snapshot is returned unchanged — callers use
// identity to detect no-op transitions. Otherwise the snapshot is
// copied first; the input is never mutated.
//
// An effect targeting a variable id absent from the snapshot is skipped:
// authored data may reference a deleted variable and play must not break
// on it. Numeric operators coerce both sides; division by zero yields
// Infinity or NaN per floating semantics, untrapped.
func Apply(effects []story.Effect, snap Snapshot) Snapshot {
	if len(effects) == 0 {
		return snap
	}

	next := snap.Clone()
	for _, e := range effects {
		entry, ok := next[e.VariableID]
		if !ok {
			continue
		}

		switch e.Operator {
		case story.OpAssign:
			entry.Value = e.Operand
		case story.OpAdd:
			entry.Value = FormatNumber(Coerce(entry.Value) + Coerce(e.Operand))
		case story.OpSubtract:
			entry.Value = FormatNumber(Coerce(entry.Value) - Coerce(e.Operand))
		case story.OpMultiply:
			entry.Value = FormatNumber(Coerce(entry.Value) * Coerce(e.Operand))
		case story.OpDivide:
			entry.Value = FormatNumber(Coerce(entry.Value) / Coerce(e.Operand))
		default:
			// Unknown effect operators are skipped like unknown
			// variables: stale authored data must not halt play.
			continue
		}
		next[e.VariableID] = entry
	}
	return next
}
