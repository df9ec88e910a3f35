package store

import (
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Store is the durable journal of host trees: one row per tree, per batch
// the host received and per event it sent back.
//
// A single connection is used. Trees are written from their own workers,
// and SQLite allows one writer at a time anyway.
type Store struct {
	db *sql.DB
}

// pragma is a connection setting and the value SQLite reports once it is
// applied.
type pragma struct {
	name  string
	set   string
	reads string
}

// journalPragmas keep the journal readable while a host is appending to
// it (WAL), bound lock waits, and enforce the tree references of batches
// and events.
var journalPragmas = []pragma{
	{name: "journal_mode", set: "WAL", reads: "wal"},
	{name: "synchronous", set: "NORMAL", reads: "1"},
	{name: "busy_timeout", set: "5000", reads: "5000"},
	{name: "foreign_keys", set: "ON", reads: "1"},
}

// migration is one step of the journal layout on top of the tables in
// schema.sql. Steps run once per file, in version order.
type migration struct {
	version int
	name    string
	stmts   []string
}

var migrations = []migration{
	{
		version: 1,
		name:    "index batches by tree and seq",
		stmts: []string{
			`CREATE INDEX IF NOT EXISTS idx_batches_tree_seq ON batches(tree_id, seq)`,
		},
	},
}

// currentSchemaVersion is the user_version of a fully migrated journal.
var currentSchemaVersion = migrations[len(migrations)-1].version

// Open opens the journal at path, creating it if needed. Opening an
// existing journal is idempotent.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := prepare(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func prepare(db *sql.DB) error {
	for _, p := range journalPragmas {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA %s = %s", p.name, p.set)); err != nil {
			return fmt.Errorf("failed to apply pragma %s: %w", p.name, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	if err := migrate(db); err != nil {
		return fmt.Errorf("failed to migrate journal: %w", err)
	}
	return nil
}

// migrate runs every migration newer than the journal's user_version, each
// in its own transaction together with the version bump.
func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= version {
			continue
		}
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("v%d %s: %w", m.version, m.name, err)
		}
		for _, stmt := range m.stmts {
			if _, err := tx.Exec(stmt); err != nil {
				tx.Rollback()
				return fmt.Errorf("v%d %s: %w", m.version, m.name, err)
			}
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
			tx.Rollback()
			return fmt.Errorf("v%d %s: set user_version: %w", m.version, m.name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("v%d %s: %w", m.version, m.name, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// checkPragmas reports the first journal pragma that does not read back as
// expected.
func (s *Store) checkPragmas() error {
	for _, p := range journalPragmas {
		var value string
		if err := s.db.QueryRow("PRAGMA " + p.name).Scan(&value); err != nil {
			return fmt.Errorf("failed to query %s: %w", p.name, err)
		}
		if value != p.reads {
			return fmt.Errorf("%s = %q, expected %q", p.name, value, p.reads)
		}
	}
	return nil
}
