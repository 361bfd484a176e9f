package debugger

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/quillforge/fable/pkg/journal"
	"github.com/quillforge/fable/pkg/runtime"
	"github.com/quillforge/fable/pkg/story"
)

func testDebugger(t *testing.T) *Debugger {
	t.Helper()
	b := &story.Bundle{
		APIVersion: story.SchemaVersion,
		Story:      story.Metadata{ID: "st-1", Title: "Tiny", SceneIDs: []string{"sc-1"}},
		Scenes: []story.Scene{
			{ID: "sc-1", Title: "Only", PassageIDs: []string{"p-start", "p-end"}},
		},
		Passages: []story.Passage{
			{ID: "p-start", SceneID: "sc-1", Type: story.PassageChoice, Title: "Start",
				Content: "You have {gold} gold.", ChoiceIDs: []string{"c-go"}},
			{ID: "p-end", SceneID: "sc-1", Type: story.PassageChoice, Title: "End",
				Content: "Done.", Terminal: true},
		},
		Choices: []story.Choice{{ID: "c-go", PassageID: "p-start", Title: "Go"}},
		Routes: []story.Route{
			{ID: "r-go", OriginID: "c-go", OriginType: story.OriginChoice,
				DestinationID: "p-end", DestinationType: story.DestinationPassage},
		},
		Variables: []story.Variable{
			{ID: "v-gold", Title: "gold", Type: story.VarNumber, Initial: "10"},
		},
	}
	repo := story.NewRepository(b)
	session, err := runtime.NewSession(context.Background(), repo, journal.NewMemoryStore(), runtime.NewResolver(1))
	if err != nil {
		t.Fatal(err)
	}
	d := New(repo, session)
	d.output = &bytes.Buffer{}
	return d
}

// TestHandleHelp verifies help output lists every command.
func TestHandleHelp(t *testing.T) {
	d := testDebugger(t)
	d.handleHelp()
	out := d.output.(*bytes.Buffer).String()
	for _, cmd := range []string{"look", "choices", "choose", "input", "routes",
		"state", "back", "restart", "history", "verbose", "dump", "help", "quit"} {
		if !strings.Contains(out, cmd) {
			t.Errorf("help output missing command %q", cmd)
		}
	}
}

// TestHandleLook verifies the rendered passage with resolved spans.
func TestHandleLook(t *testing.T) {
	d := testDebugger(t)
	d.handleLook(true)
	out := d.output.(*bytes.Buffer).String()
	if !strings.Contains(out, "You have 10 gold.") {
		t.Errorf("look missing rendered content: %s", out)
	}
}

// TestHandleState verifies state output lists variables by title with
// their current values.
func TestHandleState(t *testing.T) {
	d := testDebugger(t)
	d.handleState()
	out := d.output.(*bytes.Buffer).String()
	if !strings.Contains(out, "gold") || !strings.Contains(out, "10") {
		t.Errorf("state missing variable: %s", out)
	}
}

// TestHandleChoices verifies the authored choices are listed with gate
// status.
func TestHandleChoices(t *testing.T) {
	d := testDebugger(t)
	d.handleChoices()
	out := d.output.(*bytes.Buffer).String()
	if !strings.Contains(out, "Go") {
		t.Errorf("choices missing entry: %s", out)
	}
}

// TestHandleChooseAdvances verifies choosing by index commits the
// transition and the session moves.
func TestHandleChooseAdvances(t *testing.T) {
	d := testDebugger(t)
	if err := d.handleChoose(context.Background(), []string{"choose", "1"}); err != nil {
		t.Fatal(err)
	}
	if got := d.session.Current().PassageID; got != "p-end" {
		t.Errorf("expected p-end, got %s", got)
	}
}

// TestHandleDump verifies the raw event dump is JSON carrying ids.
func TestHandleDump(t *testing.T) {
	d := testDebugger(t)
	d.handleDump()
	out := d.output.(*bytes.Buffer).String()
	if !strings.Contains(out, `"passageId": "p-start"`) {
		t.Errorf("dump missing event fields: %s", out)
	}
}
