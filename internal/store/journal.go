// Package store persists the polling variant's cursor and a journal of
// processed updates in a local SQLite database.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

const schema = `
CREATE TABLE IF NOT EXISTS poll_state (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	next_offset INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS processed_updates (
	update_id INTEGER PRIMARY KEY,
	processed_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// Journal wraps the poller's SQLite state: the getUpdates offset plus a
// record of update ids already ingested, used to short-circuit
// redeliveries before any Notion call. It supplements, never replaces,
// the Notion-side dedupe query.
type Journal struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens (creating if needed) the journal database at path.
func Open(path string, logger *zap.Logger) (*Journal, error) {
	// WAL keeps reads cheap while the cron run writes.
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping journal database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to initialize journal schema: %w", err)
	}

	logger.Info("Poller journal opened", zap.String("path", path))
	return &Journal{db: db, logger: logger}, nil
}

// Offset returns the next getUpdates offset, zero when never set.
func (j *Journal) Offset() (int64, error) {
	var offset int64
	err := j.db.QueryRow(`SELECT next_offset FROM poll_state WHERE id = 1`).Scan(&offset)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read poll offset: %w", err)
	}
	return offset, nil
}

// SetOffset stores the next getUpdates offset.
func (j *Journal) SetOffset(offset int64) error {
	_, err := j.db.Exec(`
		INSERT INTO poll_state (id, next_offset) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET next_offset = excluded.next_offset`, offset)
	if err != nil {
		return fmt.Errorf("failed to store poll offset: %w", err)
	}
	return nil
}

// Seen reports whether an update id was journaled by an earlier run.
func (j *Journal) Seen(updateID int64) (bool, error) {
	var one int
	err := j.db.QueryRow(
		`SELECT 1 FROM processed_updates WHERE update_id = ?`, updateID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check update %d: %w", updateID, err)
	}
	return true, nil
}

// MarkProcessed journals an update id after successful ingestion.
func (j *Journal) MarkProcessed(updateID int64) error {
	_, err := j.db.Exec(
		`INSERT OR IGNORE INTO processed_updates (update_id) VALUES (?)`, updateID)
	if err != nil {
		return fmt.Errorf("failed to journal update %d: %w", updateID, err)
	}
	return nil
}

// Close closes the journal database.
func (j *Journal) Close() error {
	j.logger.Info("Closing poller journal")
	return j.db.Close()
}
