// Package ledger persists one row per processed source in a local SQLite
// database, giving batch runs a queryable history. Recording is
// best-effort: a failing ledger never fails an ingestion.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/mdforge/ingestor/ingest"
)

const schema = `
CREATE TABLE IF NOT EXISTS ingestion_events (
    event_id TEXT PRIMARY KEY,
    source_id TEXT NOT NULL,
    media_type TEXT NOT NULL,
    outcome TEXT NOT NULL,
    output_path TEXT,
    warnings INTEGER NOT NULL DEFAULT 0,
    error TEXT,
    duration_ms INTEGER NOT NULL,
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_source ON ingestion_events(source_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_events_created ON ingestion_events(created_at DESC);
`

// Entry is one recorded ingestion outcome.
type Entry struct {
	EventID    string
	SourceID   string
	MediaType  string
	Outcome    string
	OutputPath string
	Warnings   int
	Error      string
	DurationMS int64
	CreatedAt  time.Time
}

// Ledger records pipeline events into SQLite. Safe for concurrent use.
type Ledger struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the ledger database at path and applies
// the production pragmas and schema.
func Open(path string, logger *slog.Logger) (*Ledger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("ledger: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ledger: open: %w", err)
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
			return nil, fmt.Errorf("ledger: %s: %w", p, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: schema: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: ping: %w", err)
	}

	return &Ledger{db: db, logger: logger}, nil
}

// OpenMemory opens an in-memory ledger for tests. A single connection is
// forced so every query sees the same database.
func OpenMemory(logger *slog.Logger) (*Ledger, error) {
	l, err := Open(":memory:", logger)
	if err != nil {
		return nil, err
	}
	l.db.SetMaxOpenConns(1)
	return l, nil
}

// Record implements ingest.Recorder. Errors are logged, never returned.
func (l *Ledger) Record(ctx context.Context, ev ingest.Event) {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO ingestion_events (
			event_id, source_id, media_type, outcome, output_path,
			warnings, error, duration_ms, created_at
		) VALUES (?,?,?,?,?,?,?,?,?)`,
		"evt_"+uuid.NewString(), ev.SourceID, string(ev.MediaType), ev.Outcome,
		ev.OutputPath, ev.Warnings, ev.Error, ev.Duration.Milliseconds(),
		time.Now().Unix())
	if err != nil {
		l.logger.Error("ledger record failed", "error", err, "source", ev.SourceID)
	}
}

// Recent returns the most recent entries, newest first.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT event_id, source_id, media_type, outcome, output_path,
		       warnings, error, duration_ms, created_at
		FROM ingestion_events
		ORDER BY created_at DESC, event_id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger: query: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var created int64
		if err := rows.Scan(&e.EventID, &e.SourceID, &e.MediaType, &e.Outcome,
			&e.OutputPath, &e.Warnings, &e.Error, &e.DurationMS, &created); err != nil {
			return nil, fmt.Errorf("ledger: scan: %w", err)
		}
		e.CreatedAt = time.Unix(created, 0)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Cleanup deletes entries older than the retention window. Zero or
// negative days disables cleanup.
func (l *Ledger) Cleanup(ctx context.Context, retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	cutoff := time.Now().Unix() - int64(retentionDays)*86400
	if _, err := l.db.ExecContext(ctx,
		`DELETE FROM ingestion_events WHERE created_at < ?`, cutoff); err != nil {
		return fmt.Errorf("ledger: cleanup: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (l *Ledger) Close() error { return l.db.Close() }
