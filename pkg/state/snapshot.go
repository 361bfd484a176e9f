// Package state implements the playthrough state model: variable
// snapshots, condition gating, and effect application. Everything here
// is pure and side-effect free; the runtime threads snapshots through
// transitions and never mutates one in place.
package state

import (
	"errors"
	"fmt"

	"github.com/quillforge/fable/pkg/story"
)

var (
	// ErrMissingState indicates a condition referenced a variable id
	// absent from the snapshot. Evaluation of that route aborts (the
	// route is treated as closed); playback continues.
	ErrMissingState = errors.New("missing state for variable")

	// ErrInvalidOperator indicates authored-data corruption: an operator
	// outside the closed set. Fatal for the affected transition.
	ErrInvalidOperator = errors.New("invalid operator")
)

// Value is one variable's entry in a snapshot. The value is always a
// string, coerced per Type at evaluation time.
type Value struct {
	Title string             `json:"title"`
	Type  story.VariableType `json:"type"`
	Value string             `json:"value"`
}

// Snapshot maps variable id to its value at one point of play. Snapshots
// are value types: every transition produces a new snapshot and prior
// ones stay intact for history integrity.
type Snapshot map[string]Value

// Initial builds the starting snapshot for a fresh playthrough: one
// entry per defined variable, valued at its authored initial value.
func Initial(vars []story.Variable) Snapshot {
	snap := make(Snapshot, len(vars))
	for _, v := range vars {
		snap[v.ID] = Value{Title: v.Title, Type: v.Type, Value: v.Initial}
	}
	return snap
}

// Get returns the entry for a variable id, failing with ErrMissingState
// when the snapshot has no entry for it.
func (s Snapshot) Get(id string) (Value, error) {
	v, ok := s[id]
	if !ok {
		return Value{}, fmt.Errorf("%w: %s", ErrMissingState, id)
	}
	return v, nil
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// With returns a copy of the snapshot with one value replaced, keeping
// the entry's title and type. The receiver is left untouched.
func (s Snapshot) With(id, value string) Snapshot {
	out := s.Clone()
	if v, ok := out[id]; ok {
		v.Value = value
		out[id] = v
	}
	return out
}
