// Package runtime drives playback: route resolution, the passage
// transition state machine, the append-only event log, and the session
// façade the rendering layer talks to.
package runtime

import (
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand"

	"github.com/quillforge/fable/pkg/state"
	"github.com/quillforge/fable/pkg/story"
)

// Resolver selects a route from a decision point's candidates. Multiple
// open routes are broken uniformly at random — authored behavior used
// for random-encounter branching — so the randomness source is seeded
// explicitly and injectable for reproducible tests and replays.
type Resolver struct {
	rng *rand.Rand
}

// NewResolver creates a resolver with an explicit seed. The same seed
// against the same story and intents reproduces the same playthrough.
func NewResolver(seed int64) *Resolver {
	return &Resolver{rng: rand.New(rand.NewSource(seed))}
}

// NewRandomResolver creates a resolver seeded from crypto/rand.
func NewRandomResolver() (*Resolver, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return nil, fmt.Errorf("read random seed: %w", err)
	}
	return NewResolver(int64(binary.LittleEndian.Uint64(b[:]))), nil
}

// Resolve filters the candidate routes to those whose gates are open
// against the snapshot and picks one. Exactly one open route is returned
// deterministically; several are tied-broken at random; none returns
// ok=false, which callers surface as a blocked decision point rather
// than an error.
//
// A route whose gate references state missing from the snapshot is
// closed, not fatal. An invalid gate operator is authored-data
// corruption and aborts the transition.
func (r *Resolver) Resolve(repo story.Repository, routes []story.Route, snap state.Snapshot) (story.Route, bool, error) {
	if len(routes) == 0 {
		return story.Route{}, false, nil
	}

	ids := make([]string, len(routes))
	for i, rt := range routes {
		ids[i] = rt.ID
	}
	conds := repo.ConditionsForRoutes(ids)

	var open []story.Route
	for _, rt := range routes {
		ok, err := state.Open(conds[rt.ID], snap)
		if err != nil {
			if errors.Is(err, state.ErrMissingState) {
				continue // closed, keep playing
			}
			return story.Route{}, false, fmt.Errorf("route %s: %w", rt.ID, err)
		}
		if ok {
			open = append(open, rt)
		}
	}

	switch len(open) {
	case 0:
		return story.Route{}, false, nil
	case 1:
		return open[0], true, nil
	}
	return open[r.rng.Intn(len(open))], true, nil
}

// OpenRoutes reports which candidate routes are currently open; used to
// filter the choice list shown to the player without consuming
// randomness.
func (r *Resolver) OpenRoutes(repo story.Repository, routes []story.Route, snap state.Snapshot) ([]story.Route, error) {
	ids := make([]string, len(routes))
	for i, rt := range routes {
		ids[i] = rt.ID
	}
	conds := repo.ConditionsForRoutes(ids)

	var open []story.Route
	for _, rt := range routes {
		ok, err := state.Open(conds[rt.ID], snap)
		if err != nil {
			if errors.Is(err, state.ErrMissingState) {
				continue
			}
			return nil, fmt.Errorf("route %s: %w", rt.ID, err)
		}
		if ok {
			open = append(open, rt)
		}
	}
	return open, nil
}
