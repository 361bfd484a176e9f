package story

import "errors"

// Data integrity errors. These indicate authored-data or repository
// inconsistency; they are not recoverable by retry. The engine surfaces
// them and halts the affected transition, leaving prior state intact.
var (
	// ErrUnknownVariable is returned when a variable id is absent from
	// the story's variable set.
	ErrUnknownVariable = errors.New("unknown variable")

	// ErrUnknownPassage is returned when a passage id does not resolve.
	ErrUnknownPassage = errors.New("unknown passage")

	// ErrMissingDestination is returned when a route or jump points at a
	// destination that does not resolve to a concrete passage.
	ErrMissingDestination = errors.New("missing destination")

	// ErrMissingStartingDestination is returned when a story defines no
	// scenes or passages a fresh playthrough could start from.
	ErrMissingStartingDestination = errors.New("missing starting destination")
)
