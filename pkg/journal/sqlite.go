package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/quillforge/fable/pkg/state"
)

// SQLiteStore implements Store on a SQLite database file, giving play
// history that survives process restarts. WAL mode keeps the single
// writer responsive while the TUI reads history concurrently.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS events (
	id         TEXT PRIMARY KEY,
	story_id   TEXT NOT NULL,
	passage_id TEXT NOT NULL,
	origin_id  TEXT NOT NULL DEFAULT '',
	prev_id    TEXT NOT NULL DEFAULT '',
	next_id    TEXT NOT NULL DEFAULT '',
	type       TEXT NOT NULL,
	result     TEXT NOT NULL DEFAULT '',
	state      TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_story_updated ON events(story_id, updated_at);

CREATE TABLE IF NOT EXISTS bookmarks (
	story_id   TEXT NOT NULL,
	id         TEXT NOT NULL,
	event_id   TEXT NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (story_id, id)
);
`

// OpenSQLite opens (creating if needed) a SQLite-backed journal at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("journal path is required")
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}

	// SQLite supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init journal schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) GetEvent(ctx context.Context, id string) (Event, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, story_id, passage_id, origin_id, prev_id, next_id, type, result, state, updated_at
		FROM events WHERE id = ?`, id)
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Event{}, fmt.Errorf("%w: event %s", ErrNotFound, id)
	}
	return ev, err
}

func (s *SQLiteStore) Events(ctx context.Context, storyID string, limit int, reverse bool) ([]Event, error) {
	order := "ASC"
	if reverse {
		order = "DESC"
	}
	q := fmt.Sprintf(`
		SELECT id, story_id, passage_id, origin_id, prev_id, next_id, type, result, state, updated_at
		FROM events WHERE story_id = ? ORDER BY updated_at %s, rowid %s`, order, order)
	args := []interface{}{storyID}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetBookmark(ctx context.Context, storyID, id string) (Bookmark, error) {
	var bm Bookmark
	var millis int64
	err := s.db.QueryRowContext(ctx, `
		SELECT story_id, id, event_id, updated_at FROM bookmarks
		WHERE story_id = ? AND id = ?`, storyID, id).
		Scan(&bm.StoryID, &bm.ID, &bm.EventID, &millis)
	if errors.Is(err, sql.ErrNoRows) {
		return Bookmark{}, fmt.Errorf("%w: bookmark %s/%s", ErrNotFound, storyID, id)
	}
	if err != nil {
		return Bookmark{}, fmt.Errorf("query bookmark: %w", err)
	}
	bm.UpdatedAt = fromMillis(millis)
	return bm, nil
}

// sqliteTx adapts one sql.Tx to the journal Tx interface.
type sqliteTx struct {
	ctx context.Context
	tx  *sql.Tx
}

func (t *sqliteTx) PutEvent(ev Event) error {
	snap, err := json.Marshal(ev.State)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	_, err = t.tx.ExecContext(t.ctx, `
		INSERT INTO events (id, story_id, passage_id, origin_id, prev_id, next_id, type, result, state, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.StoryID, ev.PassageID, ev.OriginID, ev.PrevID, ev.NextID,
		string(ev.Type), ev.Result, string(snap), toMillis(ev.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (t *sqliteTx) UpdateEvent(id string, patch EventPatch) error {
	if patch.Result != nil {
		res, err := t.tx.ExecContext(t.ctx,
			`UPDATE events SET result = ? WHERE id = ?`, *patch.Result, id)
		if err != nil {
			return fmt.Errorf("update event result: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: event %s", ErrNotFound, id)
		}
	}
	if patch.NextID != nil {
		res, err := t.tx.ExecContext(t.ctx,
			`UPDATE events SET next_id = ? WHERE id = ?`, *patch.NextID, id)
		if err != nil {
			return fmt.Errorf("update event next: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: event %s", ErrNotFound, id)
		}
	}
	return nil
}

func (t *sqliteTx) SetBookmark(bm Bookmark) error {
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO bookmarks (story_id, id, event_id, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(story_id, id) DO UPDATE SET event_id = excluded.event_id, updated_at = excluded.updated_at`,
		bm.StoryID, bm.ID, bm.EventID, toMillis(bm.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upsert bookmark: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Transact(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&sqliteTx{ctx: ctx, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(row rowScanner) (Event, error) {
	var ev Event
	var typ, snap string
	var millis int64
	err := row.Scan(&ev.ID, &ev.StoryID, &ev.PassageID, &ev.OriginID, &ev.PrevID,
		&ev.NextID, &typ, &ev.Result, &snap, &millis)
	if err != nil {
		return Event{}, err
	}
	ev.Type = EventType(typ)
	ev.UpdatedAt = fromMillis(millis)
	ev.State = make(state.Snapshot)
	if err := json.Unmarshal([]byte(snap), &ev.State); err != nil {
		return Event{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return ev, nil
}

func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }
