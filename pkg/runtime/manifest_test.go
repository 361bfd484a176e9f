package runtime

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestBuildManifest verifies the summary reflects the current head,
// event counts since the last restart, and the final state by id.
func TestBuildManifest(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSession(t, testBundle())
	if _, err := s.AdvanceByChoice(ctx, "c-wait"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AdvanceByInput(ctx, "in-age", "21"); err != nil {
		t.Fatal(err)
	}

	m, err := s.BuildManifest(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if m.StoryID != "st-forest" || m.StoryTitle != "The Forest Gate" {
		t.Errorf("wrong story identity: %+v", m)
	}
	if m.HeadPassageID != "p-win" || !m.Ended {
		t.Errorf("head not reflected: %+v", m)
	}
	if m.Events.Total != 3 || m.Events.Choices != 1 || m.Events.Inputs != 0 {
		// The input transition landed on a terminal passage, so it was
		// recorded as GAME_OVER rather than INPUT.
		t.Errorf("wrong counts: %+v", m.Events)
	}
	if m.FinalState["v-age"] != "21" {
		t.Errorf("final state wrong: %v", m.FinalState)
	}
}

// TestWriteManifest verifies play.yaml lands in the artifacts dir.
func TestWriteManifest(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSession(t, testBundle())
	dir := filepath.Join(t.TempDir(), "artifacts")

	if err := s.WriteManifest(ctx, dir); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "play.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"story_id: st-forest", "head_passage_id: p-gate", "final_state:"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("manifest missing %q:\n%s", want, data)
		}
	}
}
