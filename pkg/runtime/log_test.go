package runtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/quillforge/fable/pkg/journal"
	"github.com/quillforge/fable/pkg/state"
)

func logEvent(id, prevID string, t journal.EventType, at time.Time) journal.Event {
	return journal.Event{
		ID:        id,
		StoryID:   "st-1",
		PassageID: "p-1",
		PrevID:    prevID,
		State:     state.Snapshot{},
		Type:      t,
		UpdatedAt: at,
	}
}

// TestLogAppendLinksAndBookmarks verifies one append writes the event,
// the backward/forward links, the predecessor's result, and the moved
// bookmark as one unit.
func TestLogAppendLinksAndBookmarks(t *testing.T) {
	ctx := context.Background()
	store := journal.NewMemoryStore()
	l := NewLog(store, "st-1")
	base := time.Now().UTC()

	if err := l.Append(ctx, logEvent("ev-1", "", journal.EventInitial, base), nil); err != nil {
		t.Fatal(err)
	}
	result := "Open the gate"
	if err := l.Append(ctx, logEvent("ev-2", "ev-1", journal.EventChoice, base.Add(time.Second)), &result); err != nil {
		t.Fatal(err)
	}

	prev, err := store.GetEvent(ctx, "ev-1")
	if err != nil {
		t.Fatal(err)
	}
	if prev.NextID != "ev-2" || prev.Result != result {
		t.Errorf("predecessor not patched: %+v", prev)
	}

	head, err := l.Head(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if head.ID != "ev-2" {
		t.Errorf("bookmark not moved: %s", head.ID)
	}
}

// TestLogAppendNilResultKeepsPredecessor verifies a nil prevResult
// leaves the predecessor's recorded result untouched.
func TestLogAppendNilResultKeepsPredecessor(t *testing.T) {
	ctx := context.Background()
	store := journal.NewMemoryStore()
	l := NewLog(store, "st-1")
	base := time.Now().UTC()

	if err := l.Append(ctx, logEvent("ev-1", "", journal.EventInitial, base), nil); err != nil {
		t.Fatal(err)
	}
	result := "Open the gate"
	if err := l.Append(ctx, logEvent("ev-2", "ev-1", journal.EventChoice, base.Add(time.Second)), &result); err != nil {
		t.Fatal(err)
	}
	if err := l.Append(ctx, logEvent("ev-3", "ev-2", journal.EventChoiceLoopback, base.Add(2*time.Second)), nil); err != nil {
		t.Fatal(err)
	}

	mid, err := store.GetEvent(ctx, "ev-2")
	if err != nil {
		t.Fatal(err)
	}
	if mid.Result != "" {
		t.Errorf("nil prevResult wrote %q", mid.Result)
	}
	if mid.NextID != "ev-3" {
		t.Errorf("forward link missing: %q", mid.NextID)
	}
}

// TestLogHeadNoBookmark verifies an unplayed journal reports
// ErrNoBookmark.
func TestLogHeadNoBookmark(t *testing.T) {
	l := NewLog(journal.NewMemoryStore(), "st-1")
	if _, err := l.Head(context.Background()); !errors.Is(err, ErrNoBookmark) {
		t.Errorf("want ErrNoBookmark, got %v", err)
	}
}

// TestLogRecentTrimsAtRestart verifies the backward walk includes the
// RESTART boundary and never crosses it.
func TestLogRecentTrimsAtRestart(t *testing.T) {
	ctx := context.Background()
	store := journal.NewMemoryStore()
	l := NewLog(store, "st-1")
	base := time.Now().UTC()

	chain := []struct {
		id, prev string
		t        journal.EventType
	}{
		{"ev-1", "", journal.EventInitial},
		{"ev-2", "ev-1", journal.EventChoice},
		{"ev-3", "ev-2", journal.EventRestart},
		{"ev-4", "ev-3", journal.EventInitial},
		{"ev-5", "ev-4", journal.EventChoice},
	}
	for i, c := range chain {
		if err := l.Append(ctx, logEvent(c.id, c.prev, c.t, base.Add(time.Duration(i)*time.Second)), nil); err != nil {
			t.Fatal(err)
		}
	}

	events, err := l.Recent(ctx, "ev-5", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[0].ID != "ev-5" || events[2].ID != "ev-3" {
		t.Errorf("wrong walk: %s..%s", events[0].ID, events[2].ID)
	}
	if events[2].Type != journal.EventRestart {
		t.Errorf("walk should end at the boundary, got %s", events[2].Type)
	}

	limited, err := l.Recent(ctx, "ev-5", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 2 || limited[1].ID != "ev-4" {
		t.Errorf("limit not honored: %+v", limited)
	}
}

// TestLogAppendPair verifies the restart boundary and the fresh INITIAL
// commit as one unit, bookmarking the INITIAL.
func TestLogAppendPair(t *testing.T) {
	ctx := context.Background()
	store := journal.NewMemoryStore()
	l := NewLog(store, "st-1")
	base := time.Now().UTC()

	if err := l.Append(ctx, logEvent("ev-1", "", journal.EventInitial, base), nil); err != nil {
		t.Fatal(err)
	}
	boundary := logEvent("ev-2", "ev-1", journal.EventRestart, base.Add(time.Second))
	initial := logEvent("ev-3", "ev-2", journal.EventInitial, base.Add(time.Second+time.Millisecond))
	if err := l.AppendPair(ctx, boundary, initial, "(restart)"); err != nil {
		t.Fatal(err)
	}

	b, err := store.GetEvent(ctx, "ev-2")
	if err != nil {
		t.Fatal(err)
	}
	if b.NextID != "ev-3" {
		t.Errorf("boundary not linked forward: %q", b.NextID)
	}
	old, _ := store.GetEvent(ctx, "ev-1")
	if old.Result != "(restart)" || old.NextID != "ev-2" {
		t.Errorf("old head not closed: %+v", old)
	}
	head, err := l.Head(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if head.ID != "ev-3" {
		t.Errorf("bookmark should land on the INITIAL, got %s", head.ID)
	}
}
