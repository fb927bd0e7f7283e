// Package sqlite implements the storage.Store contract on an embedded
// SQLite database.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements the storage.Store interface using SQLite.
//
// The database is opened in WAL mode so readers never block on an
// in-progress writer. database/sql hands each caller its own pooled
// connection; no connection is shared across concurrent callers.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// New creates a SQLite-backed store at the given path, creating the
// parent directory if needed.
func New(path string) (*SQLiteStore, error) {
	return NewWithLogger(path, slog.Default())
}

// NewWithLogger creates a store with an explicit logger. Recoverable
// read-side problems (malformed stored payloads) are logged through it.
func NewWithLogger(path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	// WAL mode for concurrent readers, NORMAL sync for write throughput
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

// Close closes the database connection pool
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// marshalPayload serializes a structured payload field for storage.
// A nil map serializes to the empty object so columns never hold null.
func marshalPayload(m map[string]any) (string, error) {
	if m == nil {
		m = map[string]any{}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}
	return string(data), nil
}

// unmarshalPayload decodes a stored payload column. Malformed data is a
// recoverable condition: the caller gets an empty map and a warning is
// logged, never an error.
func (s *SQLiteStore) unmarshalPayload(raw, column string) map[string]any {
	m := make(map[string]any)
	if raw == "" || raw == "{}" {
		return m
	}
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		s.logger.Warn("malformed stored payload, returning empty",
			"column", column, "error", err)
		return make(map[string]any)
	}
	return m
}
