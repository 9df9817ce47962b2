package state

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver (pure Go)
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite state store instance.
func NewSQLiteStore(logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLiteStore{logger: logger}
}

// NewSQLiteStoreWithDB wraps an existing connection. The schema is not migrated.
func NewSQLiteStoreWithDB(db *sql.DB, logger *slog.Logger) *SQLiteStore {
	s := NewSQLiteStore(logger)
	s.db = db
	return s
}

// Open opens a connection to the SQLite database and applies migrations.
// Use ":memory:" for an in-memory database.
func (s *SQLiteStore) Open(path string) error {
	dsn := ":memory:?_pragma=foreign_keys(1)"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("failed to create state directory: %w", err)
		}
		dsn = "file:" + path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	s.logger.Debug("opening state store", "path", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// A single connection keeps an in-memory database alive and serializes writers.
	db.SetMaxOpenConns(1)

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s.db = db
	s.path = path

	if err := s.Migrate(); err != nil {
		db.Close()
		s.db = nil
		return err
	}
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the database path given to Open.
func (s *SQLiteStore) Path() string { return s.path }

// generateID creates a new UUID.
func generateID() string {
	return uuid.New().String()
}
