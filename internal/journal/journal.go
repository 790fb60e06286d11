// Package journal keeps a local audit trail of pipeline outcomes in SQLite.
// Only the outcome of each event is recorded (state, category, error kind).
// Message bodies and attachment bytes are never written here.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Event states recorded per pipeline pass.
const (
	StateDelivered  = "delivered"
	StateFiltered   = "filtered"
	StateFailed     = "failed"
	StateSuppressed = "suppressed"
)

// Entry is one audit row.
type Entry struct {
	EventID   string
	Kind      string
	Category  string
	State     string
	ErrorKind string
	CreatedAt time.Time
}

// Journal is a SQLite-backed outcome log.
type Journal struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (and migrates) the journal database at dbPath.
func Open(dbPath string, logger *slog.Logger) (*Journal, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create journal directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open journal database: %w", err)
	}

	// Single connection for SQLite.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	j := &Journal{db: db, logger: logger}
	if err := j.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal migration failed: %w", err)
	}
	return j, nil
}

func (j *Journal) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS outcomes (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		event_id    TEXT NOT NULL,
		kind        TEXT NOT NULL,
		category    TEXT,
		state       TEXT NOT NULL,
		error_kind  TEXT,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_outcomes_time ON outcomes(created_at);
	CREATE INDEX IF NOT EXISTS idx_outcomes_event ON outcomes(event_id);
	`
	_, err := j.db.Exec(schema)
	return err
}

// Record appends an outcome row. Failures are logged, not returned as hard
// errors to callers on the event path.
func (j *Journal) Record(ctx context.Context, e Entry) {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO outcomes (event_id, kind, category, state, error_kind) VALUES (?, ?, ?, ?, ?)`,
		e.EventID, e.Kind, e.Category, e.State, e.ErrorKind)
	if err != nil {
		j.logger.Warn("journal write failed", "event_id", e.EventID, "err", err)
	}
}

// Recent returns the newest limit entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT event_id, kind, category, state, error_kind, created_at
		 FROM outcomes ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.EventID, &e.Kind, &e.Category, &e.State, &e.ErrorKind, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (j *Journal) Close() error {
	return j.db.Close()
}
