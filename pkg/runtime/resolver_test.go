package runtime

import (
	"testing"

	"github.com/quillforge/fable/pkg/state"
	"github.com/quillforge/fable/pkg/story"
)

// fanoutBundle builds a passage whose single choice fans out to three
// ungated routes, forcing the resolver to tie-break.
func fanoutBundle() *story.Bundle {
	b := &story.Bundle{
		APIVersion: story.SchemaVersion,
		Story:      story.Metadata{ID: "st-fan", Title: "Fanout", SceneIDs: []string{"sc-1"}},
		Scenes: []story.Scene{
			{ID: "sc-1", PassageIDs: []string{"p-fork", "p-a", "p-b", "p-c"}},
		},
		Passages: []story.Passage{
			{ID: "p-fork", SceneID: "sc-1", Type: story.PassageChoice, Title: "Fork",
				Content: "Three paths.", ChoiceIDs: []string{"c-go"}},
			{ID: "p-a", SceneID: "sc-1", Type: story.PassageChoice, Title: "A", Terminal: true},
			{ID: "p-b", SceneID: "sc-1", Type: story.PassageChoice, Title: "B", Terminal: true},
			{ID: "p-c", SceneID: "sc-1", Type: story.PassageChoice, Title: "C", Terminal: true},
		},
		Choices: []story.Choice{{ID: "c-go", PassageID: "p-fork", Title: "Go"}},
		Routes: []story.Route{
			{ID: "r-a", OriginID: "c-go", OriginType: story.OriginChoice, DestinationID: "p-a", DestinationType: story.DestinationPassage},
			{ID: "r-b", OriginID: "c-go", OriginType: story.OriginChoice, DestinationID: "p-b", DestinationType: story.DestinationPassage},
			{ID: "r-c", OriginID: "c-go", OriginType: story.OriginChoice, DestinationID: "p-c", DestinationType: story.DestinationPassage},
		},
	}
	return b
}

// TestResolveNoRoutes verifies an empty candidate set is a blocked
// decision, not an error.
func TestResolveNoRoutes(t *testing.T) {
	r := NewResolver(1)
	repo := story.NewRepository(fanoutBundle())
	_, ok, err := r.Resolve(repo, nil, state.Snapshot{})
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("empty candidates should not resolve")
	}
}

// TestResolveSingleOpenDeterministic verifies a lone open route is
// chosen without consuming randomness.
func TestResolveSingleOpenDeterministic(t *testing.T) {
	repo := story.NewRepository(testBundle())
	r := NewResolver(99)
	snap := state.Initial(repo.Variables())

	for i := 0; i < 5; i++ {
		route, ok, err := r.Resolve(repo, repo.RoutesFromOrigin("c-wait"), snap)
		if err != nil {
			t.Fatal(err)
		}
		if !ok || route.ID != "r-wait" {
			t.Fatalf("expected r-wait, got %+v ok=%v", route, ok)
		}
	}
}

// TestResolveAllGatesClosed verifies a decision point with every route
// gated shut resolves to ok=false.
func TestResolveAllGatesClosed(t *testing.T) {
	repo := story.NewRepository(testBundle())
	r := NewResolver(1)
	snap := state.Initial(repo.Variables())

	_, ok, err := r.Resolve(repo, repo.RoutesFromOrigin("c-open"), snap)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("gated route should be closed")
	}
}

// TestResolveMissingStateClosesRoute verifies a gate referencing an
// absent variable closes its route instead of failing the transition.
func TestResolveMissingStateClosesRoute(t *testing.T) {
	repo := story.NewRepository(testBundle())
	r := NewResolver(1)

	// No v-age in the snapshot: both input routes close.
	snap := state.Initial(repo.Variables())
	delete(snap, "v-age")
	_, ok, err := r.Resolve(repo, repo.RoutesFromOrigin("in-age"), snap)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("route gated on missing state should be closed")
	}
}

// TestResolveSeededTieBreak verifies identical seeds reproduce the same
// pick sequence over a multi-way tie.
func TestResolveSeededTieBreak(t *testing.T) {
	repo := story.NewRepository(fanoutBundle())
	routes := repo.RoutesFromOrigin("c-go")
	snap := state.Snapshot{}

	pick := func(r *Resolver) []string {
		var out []string
		for i := 0; i < 20; i++ {
			route, ok, err := r.Resolve(repo, routes, snap)
			if err != nil || !ok {
				t.Fatalf("resolve failed: %v ok=%v", err, ok)
			}
			out = append(out, route.ID)
		}
		return out
	}

	a := pick(NewResolver(42))
	b := pick(NewResolver(42))
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same seed diverged at %d: %s vs %s", i, a[i], b[i])
		}
	}

	seen := map[string]bool{}
	for _, id := range a {
		seen[id] = true
	}
	if len(seen) < 2 {
		t.Errorf("20 picks over 3 routes hit only %v", seen)
	}
}

// TestOpenRoutesFilters verifies the non-consuming filter reports gate
// status per route.
func TestOpenRoutesFilters(t *testing.T) {
	repo := story.NewRepository(testBundle())
	r := NewResolver(1)
	snap := state.Initial(repo.Variables()).With("v-age", "20")

	open, err := r.OpenRoutes(repo, repo.RoutesFromOrigin("in-age"), snap)
	if err != nil {
		t.Fatal(err)
	}
	if len(open) != 1 || open[0].ID != "r-adult" {
		t.Errorf("expected only r-adult open, got %+v", open)
	}
}
