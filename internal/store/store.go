package store

import (
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// historyVersion is the user_version a fully migrated history database
// carries. Version 0 is an empty file; version 1 adds the plans, units,
// launches and rounds tables.
const historyVersion = 1

// connPragmas are applied to the single pooled connection on open.
var connPragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA busy_timeout = 5000",
	"PRAGMA foreign_keys = ON",
}

// Store is the plan and launch history of one dagbridge database file.
type Store struct {
	db *sql.DB
}

// Open opens the history database at path, creating it when absent, and
// brings its schema up to historyVersion. Reopening an existing history
// keeps its plans, launches and rounds.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening history database %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("opening history database %s: %w", path, err)
	}

	// Pragmas are per connection, so the pool holds exactly one.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range connPragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("configuring history database: %s: %w", pragma, err)
		}
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the database. It is a no-op on a zero Store.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// migrate creates the history tables and stamps user_version. A history
// written by a newer dagbridge is refused rather than downgraded.
func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("reading history version: %w", err)
	}
	if version > historyVersion {
		return fmt.Errorf("history version %d is newer than supported version %d", version, historyVersion)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("creating history tables: %w", err)
	}
	// Later versions migrate here, in order, from version.

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", historyVersion)); err != nil {
		return fmt.Errorf("stamping history version: %w", err)
	}
	return nil
}

// pragma reads the current value of a connection pragma.
func (s *Store) pragma(name string) (string, error) {
	var value string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return "", fmt.Errorf("reading pragma %s: %w", name, err)
	}
	return value, nil
}
