package journal

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore implements Store with in-memory maps. All data is lost
// when the process exits; it backs previews, tests, and one-shot
// scripted replays.
type MemoryStore struct {
	mu        sync.RWMutex
	events    map[string]Event
	bookmarks map[string]Bookmark // keyed storyID + "/" + id
}

// NewMemoryStore creates an empty in-memory journal.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events:    make(map[string]Event),
		bookmarks: make(map[string]Bookmark),
	}
}

func (m *MemoryStore) GetEvent(ctx context.Context, id string) (Event, error) {
	if err := ctx.Err(); err != nil {
		return Event{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	ev, ok := m.events[id]
	if !ok {
		return Event{}, fmt.Errorf("%w: event %s", ErrNotFound, id)
	}
	return ev, nil
}

func (m *MemoryStore) Events(ctx context.Context, storyID string, limit int, reverse bool) ([]Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Event
	for _, ev := range m.events {
		if ev.StoryID == storyID {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if reverse {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].UpdatedAt.Before(out[j].UpdatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) GetBookmark(ctx context.Context, storyID, id string) (Bookmark, error) {
	if err := ctx.Err(); err != nil {
		return Bookmark{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	bm, ok := m.bookmarks[storyID+"/"+id]
	if !ok {
		return Bookmark{}, fmt.Errorf("%w: bookmark %s/%s", ErrNotFound, storyID, id)
	}
	return bm, nil
}

// memTx buffers writes so a failing callback leaves the store untouched.
type memTx struct {
	store     *MemoryStore
	events    []Event
	patches   []struct {
		id    string
		patch EventPatch
	}
	bookmarks []Bookmark
}

func (t *memTx) PutEvent(ev Event) error {
	t.events = append(t.events, ev)
	return nil
}

func (t *memTx) UpdateEvent(id string, patch EventPatch) error {
	// Target must exist already or be created earlier in this tx.
	if _, ok := t.store.events[id]; !ok {
		found := false
		for _, ev := range t.events {
			if ev.ID == id {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%w: event %s", ErrNotFound, id)
		}
	}
	t.patches = append(t.patches, struct {
		id    string
		patch EventPatch
	}{id, patch})
	return nil
}

func (t *memTx) SetBookmark(bm Bookmark) error {
	t.bookmarks = append(t.bookmarks, bm)
	return nil
}

func (m *MemoryStore) Transact(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{store: m}
	if err := fn(tx); err != nil {
		return err
	}

	for _, ev := range tx.events {
		m.events[ev.ID] = ev
	}
	for _, p := range tx.patches {
		ev := m.events[p.id]
		if p.patch.Result != nil {
			ev.Result = *p.patch.Result
		}
		if p.patch.NextID != nil {
			ev.NextID = *p.patch.NextID
		}
		m.events[p.id] = ev
	}
	for _, bm := range tx.bookmarks {
		m.bookmarks[bm.StoryID+"/"+bm.ID] = bm
	}
	return nil
}

func (m *MemoryStore) Close() error { return nil }
