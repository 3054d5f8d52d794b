package runner

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	started_at INTEGER NOT NULL,
	summary    TEXT NOT NULL,
	record     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_started_at ON runs (started_at DESC);
`

// SQLiteStore keeps run history in a SQLite database.
type SQLiteStore struct {
	conn     *sql.DB
	path     string
	maxCount int
	logger   *slog.Logger
	mu       sync.Mutex
}

// NewSQLiteStore opens (or creates) the database at path.
func NewSQLiteStore(path string, maxCount int, logger *slog.Logger) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// one writer
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec(sqliteSchema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteStore{
		conn:     conn,
		path:     path,
		maxCount: maxCount,
		logger:   logger.With("component", "sqlite_store"),
	}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close()
}

// History returns run summaries, most recent first. Query errors are logged
// and yield an empty history.
func (s *SQLiteStore) History() []RunSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]RunSummary, 0)
	rows, err := s.conn.Query("SELECT summary FROM runs ORDER BY started_at DESC, id")
	if err != nil {
		s.logger.Error("failed to query history", "error", err)
		return result
	}
	defer rows.Close()

	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			s.logger.Error("failed to scan history row", "error", err)
			continue
		}
		var summary RunSummary
		if err := json.Unmarshal([]byte(raw), &summary); err != nil {
			s.logger.Warn("failed to parse run summary", "error", err)
			continue
		}
		result = append(result, summary)
	}
	if err := rows.Err(); err != nil {
		s.logger.Error("failed to read history", "error", err)
	}
	return result
}

// Get returns the record of a specific run.
func (s *SQLiteStore) Get(id string) (RunRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var raw string
	err := s.conn.QueryRow("SELECT record FROM runs WHERE id = ?", id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, false
	}
	if err != nil {
		s.logger.Error("failed to query run", "id", id, "error", err)
		return RunRecord{}, false
	}

	var run RunRecord
	if err := json.Unmarshal([]byte(raw), &run); err != nil {
		s.logger.Warn("failed to parse run record", "id", id, "error", err)
		return RunRecord{}, false
	}
	return run, true
}

// Save inserts the run and prunes the oldest beyond the limit.
func (s *SQLiteStore) Save(run RunRecord) error {
	if err := validateRecord(run); err != nil {
		return err
	}

	summary, err := json.Marshal(run.RunSummary)
	if err != nil {
		return fmt.Errorf("failed to marshal run summary: %w", err)
	}
	record, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		"INSERT OR REPLACE INTO runs (id, started_at, summary, record) VALUES (?, ?, ?, ?)",
		run.ID, run.StartedAt.UnixNano(), string(summary), string(record),
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	if s.maxCount > 0 {
		if _, err := tx.Exec(
			"DELETE FROM runs WHERE id NOT IN (SELECT id FROM runs ORDER BY started_at DESC, id LIMIT ?)",
			s.maxCount,
		); err != nil {
			return fmt.Errorf("prune runs: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.logger.Debug("saved run to sqlite", "id", run.ID)
	return nil
}
