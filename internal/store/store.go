package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements domain.IdentityStore and domain.HistoryLedger on a
// single SQLite database. It is the only shared mutable resource between the
// web and bot adapters; every invariant is enforced here with conditional
// inserts, not with caller-side locking.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func Open(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single connection for SQLite
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db, logger: logger}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS persons (
		id           TEXT PRIMARY KEY,
		display_name TEXT NOT NULL,
		handle       TEXT UNIQUE,
		phone        TEXT,
		created_at   DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS channel_bindings (
		channel_kind    TEXT NOT NULL,
		channel_address TEXT NOT NULL,
		person_id       TEXT NOT NULL REFERENCES persons(id),
		created_at      DATETIME NOT NULL,
		PRIMARY KEY (channel_kind, channel_address),
		UNIQUE (person_id, channel_kind)
	);

	CREATE TABLE IF NOT EXISTS history (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		person_id   TEXT NOT NULL REFERENCES persons(id),
		stream      TEXT NOT NULL,
		request     TEXT,
		response    TEXT,
		filename    TEXT,
		media_kind  TEXT,
		description TEXT,
		created_at  DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_history_person ON history(person_id, stream, id);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// nullable maps "" to SQL NULL so the UNIQUE(handle) constraint only applies
// to persons that actually have a handle.
func nullable(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
