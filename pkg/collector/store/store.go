// Package store provides SQLite-backed storage for collected change events.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Sashwatreded/integrity-check/pkg/fim/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	batch_id   TEXT NOT NULL,
	root       TEXT NOT NULL,
	timestamp  TEXT NOT NULL,
	event_type TEXT NOT NULL,
	path       TEXT NOT NULL,
	old_hash   TEXT,
	new_hash   TEXT
);
CREATE INDEX IF NOT EXISTS idx_events_root ON events(root);
CREATE INDEX IF NOT EXISTS idx_events_type ON events(event_type);
`

// StoredEvent is one persisted change event row.
type StoredEvent struct {
	ID        int64     `json:"id"`
	BatchID   string    `json:"batch_id"`
	Root      string    `json:"root"`
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"event_type"`
	Path      string    `json:"path"`
	OldHash   string    `json:"old_hash,omitempty"`
	NewHash   string    `json:"new_hash,omitempty"`
}

// Filter narrows event listings.
type Filter struct {
	// Root restricts results to one monitored root. Empty matches all.
	Root string

	// Type restricts results to one event type. Empty matches all.
	Type string

	// Limit caps the number of rows returned. Zero or negative means
	// no cap.
	Limit int
}

// Store is the event storage backed by SQLite.
type Store struct {
	db *sql.DB
}

// Open opens or creates the event database at path, applying the
// production pragmas (WAL, busy timeout, foreign keys) and the schema.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("store: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: exec schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertBatch stores every event of a batch in one transaction.
func (s *Store) InsertBatch(ctx context.Context, batch types.EventBatch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO events (batch_id, root, timestamp, event_type, path, old_hash, new_hash)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store: prepare: %w", err)
	}
	defer stmt.Close()

	for _, ev := range batch.Events {
		_, err := stmt.ExecContext(ctx,
			batch.ID,
			batch.Root,
			ev.DetectedAt.UTC().Format(time.RFC3339Nano),
			string(ev.Type),
			ev.Path,
			nullable(ev.OldHash),
			nullable(ev.NewHash),
		)
		if err != nil {
			return fmt.Errorf("store: insert: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// ListEvents returns stored events matching the filter, newest first.
func (s *Store) ListEvents(ctx context.Context, f Filter) ([]StoredEvent, error) {
	query := `SELECT id, batch_id, root, timestamp, event_type, path, old_hash, new_hash FROM events`
	args := []any{}
	where := ""

	if f.Root != "" {
		where = " WHERE root = ?"
		args = append(args, f.Root)
	}
	if f.Type != "" {
		if where == "" {
			where = " WHERE event_type = ?"
		} else {
			where += " AND event_type = ?"
		}
		args = append(args, f.Type)
	}

	query += where + " ORDER BY id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query: %w", err)
	}
	defer rows.Close()

	events := []StoredEvent{}
	for rows.Next() {
		var (
			ev      StoredEvent
			ts      string
			oldHash sql.NullString
			newHash sql.NullString
		)
		if err := rows.Scan(&ev.ID, &ev.BatchID, &ev.Root, &ts, &ev.EventType, &ev.Path, &oldHash, &newHash); err != nil {
			return nil, fmt.Errorf("store: scan: %w", err)
		}
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("store: parse timestamp for event %d: %w", ev.ID, err)
		}
		ev.Timestamp = t
		ev.OldHash = oldHash.String
		ev.NewHash = newHash.String
		events = append(events, ev)
	}
	return events, rows.Err()
}

// CountEvents returns the number of stored events for a root. An empty
// root counts everything.
func (s *Store) CountEvents(ctx context.Context, root string) (int64, error) {
	var (
		count int64
		err   error
	)
	if root == "" {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&count)
	} else {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events WHERE root = ?`, root).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("store: count: %w", err)
	}
	return count, nil
}

// nullable maps an empty string to SQL NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
