// Package journal defines the persistent event/bookmark store the
// runtime records play history into, with in-memory and SQLite backends
// behind one interface. Events form an append-only linked chain per
// story; bookmarks are mutable resume pointers into that chain.
package journal

import (
	"context"
	"errors"
	"time"

	"github.com/quillforge/fable/pkg/state"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("journal: record not found")

// EventType tags one step of recorded play.
type EventType string

const (
	EventInitial        EventType = "INITIAL"
	EventChoice         EventType = "CHOICE"
	EventChoiceLoopback EventType = "CHOICE_LOOPBACK"
	EventInput          EventType = "INPUT"
	EventInputLoopback  EventType = "INPUT_LOOPBACK"
	EventGameOver       EventType = "GAME_OVER"
	EventRestart        EventType = "RESTART"
)

// Event is one immutable step in recorded play history, carrying the
// full state snapshot produced by the transition that created it.
// After creation only Result (once the player acts) and NextID (once the
// successor exists) are ever written.
type Event struct {
	ID        string         `json:"id"`
	StoryID   string         `json:"storyId"`
	PassageID string         `json:"passageId"`
	OriginID  string         `json:"originId,omitempty"`
	PrevID    string         `json:"prevId,omitempty"`
	NextID    string         `json:"nextId,omitempty"`
	State     state.Snapshot `json:"state"`
	Result    string         `json:"result,omitempty"`
	Type      EventType      `json:"type"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// AutoBookmark is the id of the single automatic resume pointer kept per
// story instance.
const AutoBookmark = "auto"

// Bookmark is a mutable resume pointer into the event chain, updated
// atomically alongside each event append.
type Bookmark struct {
	ID        string    `json:"id"`
	StoryID   string    `json:"storyId"`
	EventID   string    `json:"eventId"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// EventPatch is the writable subset of an event's fields. Nil fields are
// left untouched.
type EventPatch struct {
	Result *string
	NextID *string
}

// Tx batches the writes of one transition. Either every operation in the
// transaction persists or none does; no partial commit is ever an
// observable persisted state.
type Tx interface {
	PutEvent(ev Event) error
	UpdateEvent(id string, patch EventPatch) error
	SetBookmark(bm Bookmark) error
}

// Store is the persistent event/bookmark store. Implementations must be
// safe for concurrent use.
type Store interface {
	GetEvent(ctx context.Context, id string) (Event, error)
	// Events returns a story's events ordered by UpdatedAt, newest first
	// when reverse is set. limit <= 0 means no limit.
	Events(ctx context.Context, storyID string, limit int, reverse bool) ([]Event, error)
	GetBookmark(ctx context.Context, storyID, id string) (Bookmark, error)

	// Transact applies the batched writes atomically.
	Transact(ctx context.Context, fn func(tx Tx) error) error

	Close() error
}
