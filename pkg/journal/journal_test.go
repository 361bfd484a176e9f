package journal

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/quillforge/fable/pkg/state"
)

// openStores builds one store per backend so every test exercises both
// the in-memory and the SQLite implementation.
func openStores(t *testing.T) map[string]Store {
	t.Helper()
	sq, err := OpenSQLite(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { sq.Close() })
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sq,
	}
}

func testEvent(id, storyID string, at time.Time) Event {
	return Event{
		ID:        id,
		StoryID:   storyID,
		PassageID: "p-" + id,
		State:     state.Snapshot{"v-gold": {Title: "gold", Value: "10"}},
		Type:      EventChoice,
		UpdatedAt: at,
	}
}

// TestPutAndGetEvent verifies round-tripping an event through a
// transaction, including the state snapshot.
func TestPutAndGetEvent(t *testing.T) {
	ctx := context.Background()
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			want := testEvent("ev-1", "st-1", time.Now().UTC().Truncate(time.Millisecond))
			want.OriginID = "c-open"
			want.Result = "Open the gate"
			if err := s.Transact(ctx, func(tx Tx) error { return tx.PutEvent(want) }); err != nil {
				t.Fatal(err)
			}
			got, err := s.GetEvent(ctx, "ev-1")
			if err != nil {
				t.Fatal(err)
			}
			if got.PassageID != want.PassageID || got.OriginID != want.OriginID || got.Result != want.Result {
				t.Errorf("got %+v, want %+v", got, want)
			}
			if got.State["v-gold"].Value != "10" {
				t.Errorf("state lost: %v", got.State)
			}
			if !got.UpdatedAt.Equal(want.UpdatedAt) {
				t.Errorf("timestamp drifted: %v != %v", got.UpdatedAt, want.UpdatedAt)
			}
		})
	}
}

// TestGetEventNotFound verifies missing lookups wrap ErrNotFound.
func TestGetEventNotFound(t *testing.T) {
	ctx := context.Background()
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.GetEvent(ctx, "ev-ghost"); !errors.Is(err, ErrNotFound) {
				t.Errorf("want ErrNotFound, got %v", err)
			}
			if _, err := s.GetBookmark(ctx, "st-1", AutoBookmark); !errors.Is(err, ErrNotFound) {
				t.Errorf("want ErrNotFound, got %v", err)
			}
		})
	}
}

// TestEventsOrdering verifies listing is time-ordered, story-scoped,
// and honors limit and reverse.
func TestEventsOrdering(t *testing.T) {
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Millisecond)
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			err := s.Transact(ctx, func(tx Tx) error {
				for i, id := range []string{"ev-a", "ev-b", "ev-c"} {
					if err := tx.PutEvent(testEvent(id, "st-1", base.Add(time.Duration(i)*time.Second))); err != nil {
						return err
					}
				}
				return tx.PutEvent(testEvent("ev-other", "st-2", base))
			})
			if err != nil {
				t.Fatal(err)
			}

			evs, err := s.Events(ctx, "st-1", 0, false)
			if err != nil {
				t.Fatal(err)
			}
			if len(evs) != 3 {
				t.Fatalf("expected 3 events, got %d", len(evs))
			}
			if evs[0].ID != "ev-a" || evs[2].ID != "ev-c" {
				t.Errorf("wrong order: %s..%s", evs[0].ID, evs[2].ID)
			}

			evs, err = s.Events(ctx, "st-1", 2, true)
			if err != nil {
				t.Fatal(err)
			}
			if len(evs) != 2 || evs[0].ID != "ev-c" || evs[1].ID != "ev-b" {
				t.Errorf("reverse limit wrong: %+v", evs)
			}
		})
	}
}

// TestUpdateEvent verifies patches touch only the named fields.
func TestUpdateEvent(t *testing.T) {
	ctx := context.Background()
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ev := testEvent("ev-1", "st-1", time.Now().UTC())
			if err := s.Transact(ctx, func(tx Tx) error { return tx.PutEvent(ev) }); err != nil {
				t.Fatal(err)
			}

			result := "Wait for the keeper"
			err := s.Transact(ctx, func(tx Tx) error {
				return tx.UpdateEvent("ev-1", EventPatch{Result: &result})
			})
			if err != nil {
				t.Fatal(err)
			}
			got, err := s.GetEvent(ctx, "ev-1")
			if err != nil {
				t.Fatal(err)
			}
			if got.Result != result {
				t.Errorf("result not patched: %q", got.Result)
			}
			if got.NextID != "" {
				t.Errorf("nextId should be untouched, got %q", got.NextID)
			}

			next := "ev-2"
			err = s.Transact(ctx, func(tx Tx) error {
				return tx.UpdateEvent("ev-1", EventPatch{NextID: &next})
			})
			if err != nil {
				t.Fatal(err)
			}
			got, _ = s.GetEvent(ctx, "ev-1")
			if got.Result != result || got.NextID != next {
				t.Errorf("patch clobbered fields: %+v", got)
			}
		})
	}
}

// TestUpdateEventUnknownTarget verifies patching a missing event fails
// and also sees events created earlier in the same transaction.
func TestUpdateEventUnknownTarget(t *testing.T) {
	ctx := context.Background()
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			result := "x"
			err := s.Transact(ctx, func(tx Tx) error {
				return tx.UpdateEvent("ev-ghost", EventPatch{Result: &result})
			})
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("want ErrNotFound, got %v", err)
			}

			// Same-transaction visibility: put then patch.
			err = s.Transact(ctx, func(tx Tx) error {
				if err := tx.PutEvent(testEvent("ev-1", "st-1", time.Now().UTC())); err != nil {
					return err
				}
				return tx.UpdateEvent("ev-1", EventPatch{Result: &result})
			})
			if err != nil {
				t.Fatal(err)
			}
			got, err := s.GetEvent(ctx, "ev-1")
			if err != nil {
				t.Fatal(err)
			}
			if got.Result != "x" {
				t.Errorf("in-tx patch lost: %+v", got)
			}
		})
	}
}

// TestTransactRollsBackOnError verifies a failing callback leaves no
// partial writes behind.
func TestTransactRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			err := s.Transact(ctx, func(tx Tx) error {
				if err := tx.PutEvent(testEvent("ev-1", "st-1", time.Now().UTC())); err != nil {
					return err
				}
				if err := tx.SetBookmark(Bookmark{ID: AutoBookmark, StoryID: "st-1", EventID: "ev-1"}); err != nil {
					return err
				}
				return boom
			})
			if !errors.Is(err, boom) {
				t.Fatalf("want boom, got %v", err)
			}
			if _, err := s.GetEvent(ctx, "ev-1"); !errors.Is(err, ErrNotFound) {
				t.Errorf("event leaked past rollback: %v", err)
			}
			if _, err := s.GetBookmark(ctx, "st-1", AutoBookmark); !errors.Is(err, ErrNotFound) {
				t.Errorf("bookmark leaked past rollback: %v", err)
			}
		})
	}
}

// TestBookmarkUpsert verifies the auto bookmark moves in place rather
// than accumulating.
func TestBookmarkUpsert(t *testing.T) {
	ctx := context.Background()
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			for _, eventID := range []string{"ev-1", "ev-2"} {
				bm := Bookmark{ID: AutoBookmark, StoryID: "st-1", EventID: eventID, UpdatedAt: time.Now().UTC()}
				if err := s.Transact(ctx, func(tx Tx) error { return tx.SetBookmark(bm) }); err != nil {
					t.Fatal(err)
				}
			}
			got, err := s.GetBookmark(ctx, "st-1", AutoBookmark)
			if err != nil {
				t.Fatal(err)
			}
			if got.EventID != "ev-2" {
				t.Errorf("bookmark not moved: %+v", got)
			}
		})
	}
}

// TestSQLitePersistsAcrossReopen verifies a fresh handle on the same
// file sees earlier writes.
func TestSQLitePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "journal.db")

	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	ev := testEvent("ev-1", "st-1", time.Now().UTC().Truncate(time.Millisecond))
	if err := s.Transact(ctx, func(tx Tx) error { return tx.PutEvent(ev) }); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	got, err := s.GetEvent(ctx, "ev-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.PassageID != ev.PassageID {
		t.Errorf("reopened store returned %+v", got)
	}
}
