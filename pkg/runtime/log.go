package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/quillforge/fable/pkg/journal"
)

// Log is the append-only play history of one story instance. Every
// committed transition appends one event (two across a restart
// boundary), links it to its predecessor, and moves the auto bookmark —
// all in a single journal transaction, so a crash can never leave the
// bookmark pointing at an event that was not persisted.
type Log struct {
	store   journal.Store
	storyID string
}

// NewLog creates a log over the given journal store.
func NewLog(store journal.Store, storyID string) *Log {
	return &Log{store: store, storyID: storyID}
}

// Append commits one transition: the new event, the predecessor's
// result and forward link, and the bookmark move, atomically.
// prevResult records what the player did at the predecessor (the chosen
// title or the submitted input value); nil leaves the predecessor's
// result untouched, which loopback relies on.
func (l *Log) Append(ctx context.Context, ev journal.Event, prevResult *string) error {
	return l.store.Transact(ctx, func(tx journal.Tx) error {
		if err := tx.PutEvent(ev); err != nil {
			return err
		}
		if ev.PrevID != "" {
			if err := tx.UpdateEvent(ev.PrevID, journal.EventPatch{
				Result: prevResult,
				NextID: &ev.ID,
			}); err != nil {
				return err
			}
		}
		return tx.SetBookmark(journal.Bookmark{
			ID:        journal.AutoBookmark,
			StoryID:   l.storyID,
			EventID:   ev.ID,
			UpdatedAt: ev.UpdatedAt,
		})
	})
}

// AppendPair commits a restart boundary: the RESTART marker and the
// fresh INITIAL event after it in one atomic unit, bookmarking the
// INITIAL event.
func (l *Log) AppendPair(ctx context.Context, boundary, initial journal.Event, prevResult string) error {
	return l.store.Transact(ctx, func(tx journal.Tx) error {
		if err := tx.PutEvent(boundary); err != nil {
			return err
		}
		if boundary.PrevID != "" {
			if err := tx.UpdateEvent(boundary.PrevID, journal.EventPatch{
				Result: &prevResult,
				NextID: &boundary.ID,
			}); err != nil {
				return err
			}
		}
		if err := tx.PutEvent(initial); err != nil {
			return err
		}
		next := initial.ID
		if err := tx.UpdateEvent(boundary.ID, journal.EventPatch{NextID: &next}); err != nil {
			return err
		}
		return tx.SetBookmark(journal.Bookmark{
			ID:        journal.AutoBookmark,
			StoryID:   l.storyID,
			EventID:   initial.ID,
			UpdatedAt: initial.UpdatedAt,
		})
	})
}

// UpdateResult attaches the player's action to an existing event.
func (l *Log) UpdateResult(ctx context.Context, eventID, result string) error {
	return l.store.Transact(ctx, func(tx journal.Tx) error {
		return tx.UpdateEvent(eventID, journal.EventPatch{Result: &result})
	})
}

// Head returns the event the auto bookmark points at, or ErrNoBookmark
// when the story has never been played on this journal.
func (l *Log) Head(ctx context.Context) (journal.Event, error) {
	bm, err := l.store.GetBookmark(ctx, l.storyID, journal.AutoBookmark)
	if err != nil {
		if errors.Is(err, journal.ErrNotFound) {
			return journal.Event{}, ErrNoBookmark
		}
		return journal.Event{}, err
	}
	ev, err := l.store.GetEvent(ctx, bm.EventID)
	if err != nil {
		return journal.Event{}, fmt.Errorf("bookmarked event: %w", err)
	}
	return ev, nil
}

// Recent walks backward from the given event by recency, returning up to
// limit events, newest first. The walk is trimmed at the nearest
// preceding RESTART boundary: the boundary event is included, anything
// from a previous life of the story is never surfaced.
func (l *Log) Recent(ctx context.Context, fromEventID string, limit int) ([]journal.Event, error) {
	var out []journal.Event
	id := fromEventID
	for id != "" && (limit <= 0 || len(out) < limit) {
		ev, err := l.store.GetEvent(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
		if ev.Type == journal.EventRestart {
			break
		}
		id = ev.PrevID
	}
	return out, nil
}

// ErrNoBookmark indicates the journal holds no resume pointer for the
// story; the caller starts a fresh playthrough instead.
var ErrNoBookmark = errors.New("no bookmark")
