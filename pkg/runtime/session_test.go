package runtime

import (
	"context"
	"errors"
	"testing"

	"github.com/quillforge/fable/pkg/journal"
	"github.com/quillforge/fable/pkg/story"
)

// testBundle builds the fixture story used across the runtime tests: a
// gated gate passage, an input passage whose submitted value gates its
// own routes, and two terminal endings.
func testBundle() *story.Bundle {
	return &story.Bundle{
		APIVersion: story.SchemaVersion,
		Story: story.Metadata{
			ID:       "st-forest",
			Title:    "The Forest Gate",
			JumpID:   "j-start",
			SceneIDs: []string{"sc-edge", "sc-deep"},
		},
		Scenes: []story.Scene{
			{ID: "sc-edge", Title: "Forest Edge", PassageIDs: []string{"p-gate", "p-age"}},
			{ID: "sc-deep", Title: "Deep Forest", PassageIDs: []string{"p-win", "p-lose"}},
		},
		Passages: []story.Passage{
			{ID: "p-gate", SceneID: "sc-edge", Type: story.PassageChoice, Title: "The Gate",
				Content:   "An iron gate bars the path. You carry {gold} gold.",
				ChoiceIDs: []string{"c-open", "c-wait"}},
			{ID: "p-age", SceneID: "sc-edge", Type: story.PassageInput, Title: "The Keeper",
				Content: "\"How old are you?\"", InputID: "in-age"},
			{ID: "p-win", SceneID: "sc-deep", Type: story.PassageChoice, Title: "The Glade",
				Content: "Sunlight at last.", Terminal: true},
			{ID: "p-lose", SceneID: "sc-deep", Type: story.PassageChoice, Title: "The Thicket",
				Content: "The thorns close in.", Terminal: true},
		},
		Choices: []story.Choice{
			{ID: "c-open", PassageID: "p-gate", Title: "Open the gate"},
			{ID: "c-wait", PassageID: "p-gate", Title: "Wait for the keeper"},
		},
		Inputs: []story.Input{
			{ID: "in-age", PassageID: "p-age", VariableID: "v-age"},
		},
		Routes: []story.Route{
			{ID: "r-open", OriginID: "c-open", OriginType: story.OriginChoice,
				DestinationID: "p-win", DestinationType: story.DestinationPassage},
			{ID: "r-wait", OriginID: "c-wait", OriginType: story.OriginChoice,
				DestinationID: "p-age", DestinationType: story.DestinationPassage},
			{ID: "r-adult", OriginID: "in-age", OriginType: story.OriginInput,
				DestinationID: "j-deep", DestinationType: story.DestinationJump},
			{ID: "r-child", OriginID: "in-age", OriginType: story.OriginInput,
				DestinationID: "p-lose", DestinationType: story.DestinationPassage},
		},
		Conditions: []story.Condition{
			{ID: "cd-key", RouteID: "r-open", VariableID: "v-key", Operator: story.OpEQ, Operand: "true"},
			{ID: "cd-adult", RouteID: "r-adult", VariableID: "v-age", Operator: story.OpGTE, Operand: "18"},
			{ID: "cd-child", RouteID: "r-child", VariableID: "v-age", Operator: story.OpLT, Operand: "18"},
		},
		Effects: []story.Effect{
			{ID: "ef-toll", RouteID: "r-open", VariableID: "v-gold", Operator: story.OpSubtract, Operand: "5"},
		},
		Variables: []story.Variable{
			{ID: "v-gold", Title: "gold", Type: story.VarNumber, Initial: "10"},
			{ID: "v-key", Title: "hasKey", Type: story.VarBoolean, Initial: "false"},
			{ID: "v-age", Title: "age", Type: story.VarNumber, Initial: "0"},
		},
		Jumps: []story.Jump{
			{ID: "j-start", SceneID: "sc-edge"},
			{ID: "j-deep", SceneID: "sc-deep"},
		},
	}
}

func newTestSession(t *testing.T, b *story.Bundle) (*Session, *journal.MemoryStore) {
	t.Helper()
	store := journal.NewMemoryStore()
	s, err := NewSession(context.Background(), story.NewRepository(b), store, NewResolver(1))
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	return s, store
}

// TestSessionStartsAtJump verifies a fresh session lands on the story's
// designated jump and commits an INITIAL event with seeded state.
func TestSessionStartsAtJump(t *testing.T) {
	s, store := newTestSession(t, testBundle())

	cur := s.Current()
	if cur.Type != journal.EventInitial {
		t.Errorf("expected INITIAL, got %s", cur.Type)
	}
	if cur.PassageID != "p-gate" {
		t.Errorf("expected p-gate, got %s", cur.PassageID)
	}
	if cur.State["v-gold"].Value != "10" || cur.State["v-age"].Value != "0" {
		t.Errorf("state not seeded: %v", cur.State)
	}

	// The INITIAL event must already be persisted and bookmarked.
	if _, err := store.GetEvent(context.Background(), cur.ID); err != nil {
		t.Errorf("initial event not persisted: %v", err)
	}
	bm, err := store.GetBookmark(context.Background(), "st-forest", journal.AutoBookmark)
	if err != nil || bm.EventID != cur.ID {
		t.Errorf("bookmark not at initial event: %+v, %v", bm, err)
	}
}

// TestSessionStartFallback verifies that without a designated jump the
// session starts at the first passage of the first scene.
func TestSessionStartFallback(t *testing.T) {
	b := testBundle()
	b.Story.JumpID = ""
	s, _ := newTestSession(t, b)
	if got := s.Current().PassageID; got != "p-gate" {
		t.Errorf("expected p-gate, got %s", got)
	}
}

// TestViewHidesGatedChoices verifies only choices with an open route
// are offered, with expression spans in titles and content resolved.
func TestViewHidesGatedChoices(t *testing.T) {
	s, _ := newTestSession(t, testBundle())

	v, err := s.View()
	if err != nil {
		t.Fatal(err)
	}
	if len(v.Choices) != 1 || v.Choices[0].ID != "c-wait" {
		t.Fatalf("expected only c-wait open, got %+v", v.Choices)
	}
	if v.Ended {
		t.Error("gate should not read as an ending")
	}
	if len(v.Paragraphs) == 0 || v.Paragraphs[0] != "An iron gate bars the path. You carry 10 gold." {
		t.Errorf("content not rendered: %v", v.Paragraphs)
	}
}

// TestAdvanceByChoiceBlocked verifies choosing a fully gated choice
// blocks without committing anything.
func TestAdvanceByChoiceBlocked(t *testing.T) {
	s, _ := newTestSession(t, testBundle())
	before := s.Current()

	tr, err := s.AdvanceByChoice(context.Background(), "c-open")
	if err != nil {
		t.Fatal(err)
	}
	if !tr.Blocked || tr.Committed {
		t.Fatalf("expected blocked transition, got %+v", tr)
	}
	if tr.Reason == "" {
		t.Error("blocked transition needs a reason")
	}
	if s.Current().ID != before.ID {
		t.Error("blocked transition moved the session")
	}
}

// TestAdvanceByChoiceGameOver verifies a committed choice applies route
// effects and lands as GAME_OVER on a terminal destination, recording
// the choice title on the predecessor event.
func TestAdvanceByChoiceGameOver(t *testing.T) {
	b := testBundle()
	b.Variables[1].Initial = "true" // start with the key
	s, store := newTestSession(t, b)
	initialID := s.Current().ID

	tr, err := s.AdvanceByChoice(context.Background(), "c-open")
	if err != nil {
		t.Fatal(err)
	}
	if !tr.Committed {
		t.Fatalf("expected commit, got %+v", tr)
	}
	cur := s.Current()
	if cur.Type != journal.EventGameOver {
		t.Errorf("expected GAME_OVER, got %s", cur.Type)
	}
	if cur.PassageID != "p-win" {
		t.Errorf("expected p-win, got %s", cur.PassageID)
	}
	if cur.State["v-gold"].Value != "5" {
		t.Errorf("toll not applied: %v", cur.State)
	}
	if !tr.View.Ended {
		t.Error("terminal passage should end the view")
	}

	prev, err := store.GetEvent(context.Background(), initialID)
	if err != nil {
		t.Fatal(err)
	}
	if prev.Result != "Open the gate" {
		t.Errorf("predecessor result not recorded: %q", prev.Result)
	}
	if prev.NextID != cur.ID {
		t.Errorf("forward link missing: %q", prev.NextID)
	}
}

// TestAdvanceByChoiceOwnership verifies a choice belonging to another
// passage is a structural error, not a blocked transition.
func TestAdvanceByChoiceOwnership(t *testing.T) {
	s, _ := newTestSession(t, testBundle())
	if _, err := s.AdvanceByChoice(context.Background(), "c-ghost"); err == nil {
		t.Error("expected error for unknown choice")
	}

	if _, err := s.AdvanceByChoice(context.Background(), "c-wait"); err != nil {
		t.Fatal(err)
	}
	// Now on p-age; gate choices are out of reach.
	if _, err := s.AdvanceByChoice(context.Background(), "c-open"); err == nil {
		t.Error("expected ownership error")
	}
}

// TestAdvanceByInputValidation verifies typed validation blocks bad
// submissions without touching state.
func TestAdvanceByInputValidation(t *testing.T) {
	s, _ := newTestSession(t, testBundle())
	ctx := context.Background()
	if _, err := s.AdvanceByChoice(ctx, "c-wait"); err != nil {
		t.Fatal(err)
	}

	tr, err := s.AdvanceByInput(ctx, "in-age", "seventeen")
	if err != nil {
		t.Fatal(err)
	}
	if !tr.Blocked || tr.Reason != "value is not a number" {
		t.Fatalf("expected number validation block, got %+v", tr)
	}
	if s.Snapshot()["v-age"].Value != "0" {
		t.Error("blocked input leaked into state")
	}
}

// TestAdvanceByInputTrimsNumber verifies padded numeric submissions
// pass validation and the trimmed value is what lands in state.
func TestAdvanceByInputTrimsNumber(t *testing.T) {
	s, _ := newTestSession(t, testBundle())
	ctx := context.Background()
	if _, err := s.AdvanceByChoice(ctx, "c-wait"); err != nil {
		t.Fatal(err)
	}

	tr, err := s.AdvanceByInput(ctx, "in-age", " 21 ")
	if err != nil {
		t.Fatal(err)
	}
	if tr.Blocked {
		t.Fatalf("padded number blocked: %+v", tr)
	}
	if got := s.Snapshot()["v-age"].Value; got != "21" {
		t.Errorf("stored value %q, want trimmed %q", got, "21")
	}
}

// TestValidateInputTyped covers the typed validation paths, including
// whitespace handling around NUMBER and BOOLEAN submissions.
func TestValidateInputTyped(t *testing.T) {
	cases := []struct {
		varType story.VariableType
		raw     string
		want    string
		ok      bool
	}{
		{story.VarNumber, "17", "17", true},
		{story.VarNumber, " 17 ", "17", true},
		{story.VarNumber, "seventeen", "", false},
		{story.VarBoolean, "true", "true", true},
		{story.VarBoolean, "true ", "true", true},
		{story.VarBoolean, " false", "false", true},
		{story.VarBoolean, "yes", "", false},
		{story.VarString, "  keep me  ", "  keep me  ", true},
	}
	for _, c := range cases {
		got, _, ok := validateInput(c.varType, c.raw)
		if ok != c.ok || got != c.want {
			t.Errorf("validateInput(%s, %q) = (%q, %v), want (%q, %v)",
				c.varType, c.raw, got, ok, c.want, c.ok)
		}
	}
}

// TestAdvanceByInputSelfGating verifies the submitted value gates its
// own routes: the same input passage branches on the number entered,
// and a jump destination lands on its scene's first passage.
func TestAdvanceByInputSelfGating(t *testing.T) {
	ctx := context.Background()

	s, _ := newTestSession(t, testBundle())
	if _, err := s.AdvanceByChoice(ctx, "c-wait"); err != nil {
		t.Fatal(err)
	}
	tr, err := s.AdvanceByInput(ctx, "in-age", "21")
	if err != nil {
		t.Fatal(err)
	}
	if !tr.Committed || s.Current().PassageID != "p-win" {
		t.Fatalf("adult should reach p-win via jump, got %+v", s.Current())
	}
	if s.Snapshot()["v-age"].Value != "21" {
		t.Errorf("submitted value not committed: %v", s.Snapshot())
	}

	s, _ = newTestSession(t, testBundle())
	if _, err := s.AdvanceByChoice(ctx, "c-wait"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AdvanceByInput(ctx, "in-age", "12"); err != nil {
		t.Fatal(err)
	}
	if s.Current().PassageID != "p-lose" {
		t.Errorf("child should reach p-lose, got %s", s.Current().PassageID)
	}
}

// TestAdvanceByInputUnbound verifies an input without a bound variable
// blocks rather than errors.
func TestAdvanceByInputUnbound(t *testing.T) {
	b := testBundle()
	b.Inputs[0].VariableID = ""
	s, _ := newTestSession(t, b)
	ctx := context.Background()
	if _, err := s.AdvanceByChoice(ctx, "c-wait"); err != nil {
		t.Fatal(err)
	}
	tr, err := s.AdvanceByInput(ctx, "in-age", "21")
	if err != nil {
		t.Fatal(err)
	}
	if !tr.Blocked {
		t.Fatalf("expected block, got %+v", tr)
	}
}

// TestLoopbackPreservesState verifies stepping back returns to the
// decision point with the snapshot unchanged and the predecessor's
// recorded result intact.
func TestLoopbackPreservesState(t *testing.T) {
	ctx := context.Background()
	s, store := newTestSession(t, testBundle())
	initialID := s.Current().ID

	if _, err := s.AdvanceByChoice(ctx, "c-wait"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AdvanceByInput(ctx, "in-age", "12"); err != nil {
		t.Fatal(err)
	}

	// Current event came from the input; loop back to the keeper.
	tr, err := s.Loopback(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !tr.Committed {
		t.Fatalf("expected commit, got %+v", tr)
	}
	cur := s.Current()
	if cur.Type != journal.EventInputLoopback {
		t.Errorf("expected INPUT_LOOPBACK, got %s", cur.Type)
	}
	if cur.PassageID != "p-age" {
		t.Errorf("expected p-age, got %s", cur.PassageID)
	}
	if cur.State["v-age"].Value != "12" {
		t.Errorf("loopback must preserve state, got %v", cur.State)
	}

	// The original action at the INITIAL event must survive the loopback.
	ev, err := store.GetEvent(ctx, initialID)
	if err != nil {
		t.Fatal(err)
	}
	if ev.Result != "Wait for the keeper" {
		t.Errorf("predecessor result clobbered: %q", ev.Result)
	}
}

// TestLoopbackFromChoice verifies the loopback event type follows the
// origin kind.
func TestLoopbackFromChoice(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSession(t, testBundle())
	if _, err := s.AdvanceByChoice(ctx, "c-wait"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Loopback(ctx); err != nil {
		t.Fatal(err)
	}
	cur := s.Current()
	if cur.Type != journal.EventChoiceLoopback || cur.PassageID != "p-gate" {
		t.Errorf("expected CHOICE_LOOPBACK on p-gate, got %+v", cur)
	}
}

// TestLoopbackWithoutOrigin verifies a fresh INITIAL event has nothing
// to go back to.
func TestLoopbackWithoutOrigin(t *testing.T) {
	s, _ := newTestSession(t, testBundle())
	if _, err := s.Loopback(context.Background()); !errors.Is(err, ErrNoOrigin) {
		t.Errorf("want ErrNoOrigin, got %v", err)
	}
}

// TestRestartReseedsState verifies restart opens a fresh life with
// re-seeded variables and history that never crosses the boundary.
func TestRestartReseedsState(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSession(t, testBundle())
	if _, err := s.AdvanceByChoice(ctx, "c-wait"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AdvanceByInput(ctx, "in-age", "12"); err != nil {
		t.Fatal(err)
	}

	tr, err := s.Restart(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !tr.Committed {
		t.Fatalf("expected commit, got %+v", tr)
	}
	cur := s.Current()
	if cur.Type != journal.EventInitial || cur.PassageID != "p-gate" {
		t.Errorf("expected fresh INITIAL on p-gate, got %+v", cur)
	}
	if cur.State["v-age"].Value != "0" {
		t.Errorf("state not re-seeded: %v", cur.State)
	}

	// History walks back to the RESTART marker and stops there.
	hist, err := s.History(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(hist) != 2 {
		t.Fatalf("expected INITIAL+RESTART, got %d events", len(hist))
	}
	if hist[0].Type != journal.EventInitial || hist[1].Type != journal.EventRestart {
		t.Errorf("wrong trim: %s, %s", hist[0].Type, hist[1].Type)
	}
}

// TestResumeFromBookmark verifies a second session on the same journal
// picks up where the first left off.
func TestResumeFromBookmark(t *testing.T) {
	ctx := context.Background()
	b := testBundle()
	store := journal.NewMemoryStore()
	repo := story.NewRepository(b)

	s1, err := NewSession(ctx, repo, store, NewResolver(1))
	if err != nil {
		t.Fatal(err)
	}
	if s1.Resumed() {
		t.Error("first session should not report resumed")
	}
	if _, err := s1.AdvanceByChoice(ctx, "c-wait"); err != nil {
		t.Fatal(err)
	}

	s2, err := NewSession(ctx, repo, store, NewResolver(1))
	if err != nil {
		t.Fatal(err)
	}
	if !s2.Resumed() {
		t.Error("second session should resume")
	}
	if s2.Current().ID != s1.Current().ID {
		t.Errorf("resumed at %s, head is %s", s2.Current().ID, s1.Current().ID)
	}
}

// TestSubscribeSeesCommits verifies observers receive committed events
// and blocked transitions publish nothing.
func TestSubscribeSeesCommits(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSession(t, testBundle())
	ch, cancel := s.Subscribe(4)
	defer cancel()

	if _, err := s.AdvanceByChoice(ctx, "c-open"); err != nil { // blocked
		t.Fatal(err)
	}
	if _, err := s.AdvanceByChoice(ctx, "c-wait"); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-ch:
		if ev.PassageID != "p-age" {
			t.Errorf("expected the p-age commit, got %+v", ev)
		}
	default:
		t.Fatal("no event published")
	}
	select {
	case ev := <-ch:
		t.Errorf("unexpected extra event: %+v", ev)
	default:
	}
}
