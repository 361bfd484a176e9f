package runtime

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/quillforge/fable/pkg/journal"
)

// PlayManifest summarizes one session for the artifacts directory:
// where the playthrough stands, how it got there, and the final state.
type PlayManifest struct {
	StoryID       string            `yaml:"story_id"        json:"story_id"`
	StoryTitle    string            `yaml:"story_title"     json:"story_title"`
	Resumed       bool              `yaml:"resumed"         json:"resumed"`
	StartedAt     string            `yaml:"started_at"      json:"started_at"`
	EndedAt       string            `yaml:"ended_at"        json:"ended_at"`
	HeadEventID   string            `yaml:"head_event_id"   json:"head_event_id"`
	HeadPassageID string            `yaml:"head_passage_id" json:"head_passage_id"`
	Ended         bool              `yaml:"ended"           json:"ended"`
	Events        EventsSummary     `yaml:"events_summary"  json:"events_summary"`
	FinalState    map[string]string `yaml:"final_state,omitempty" json:"final_state,omitempty"`
}

// EventsSummary counts the session's events by type since the last
// restart boundary.
type EventsSummary struct {
	Total     int `yaml:"total"               json:"total"`
	Choices   int `yaml:"choices"             json:"choices"`
	Inputs    int `yaml:"inputs"              json:"inputs"`
	Loopbacks int `yaml:"loopbacks"           json:"loopbacks"`
	Restarts  int `yaml:"restarts,omitempty"  json:"restarts,omitempty"`
}

// BuildManifest produces a PlayManifest from the session's current
// position and its recent history.
func (s *Session) BuildManifest(ctx context.Context) (*PlayManifest, error) {
	cur := s.Current()
	events, err := s.log.Recent(ctx, cur.ID, 0)
	if err != nil {
		return nil, err
	}

	var sum EventsSummary
	for _, ev := range events {
		sum.Total++
		switch ev.Type {
		case journal.EventChoice:
			sum.Choices++
		case journal.EventInput:
			sum.Inputs++
		case journal.EventChoiceLoopback, journal.EventInputLoopback:
			sum.Loopbacks++
		case journal.EventRestart:
			sum.Restarts++
		}
	}

	final := make(map[string]string, len(cur.State))
	for id, v := range cur.State {
		final[id] = v.Value
	}

	passage, err := s.repo.Passage(cur.PassageID)
	if err != nil {
		return nil, err
	}

	meta := s.repo.Story()
	return &PlayManifest{
		StoryID:       meta.ID,
		StoryTitle:    meta.Title,
		Resumed:       s.Resumed(),
		StartedAt:     s.startedAt.Format(time.RFC3339),
		EndedAt:       time.Now().UTC().Format(time.RFC3339),
		HeadEventID:   cur.ID,
		HeadPassageID: cur.PassageID,
		Ended:         passage.Terminal || cur.Type == journal.EventGameOver,
		Events:        sum,
		FinalState:    final,
	}, nil
}

// WriteManifest writes play.yaml to the given artifacts directory.
func (s *Session) WriteManifest(ctx context.Context, dir string) error {
	m, err := s.BuildManifest(ctx)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create artifacts dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "play.yaml"), data, 0644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}
