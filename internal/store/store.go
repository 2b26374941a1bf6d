package store

import (
	"database/sql"
	_ "embed"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// migrations[i] upgrades a device database from user_version i to i+1.
// Fresh databases get the tables from schema.sql first and then run every
// step, so each step must be idempotent.
var migrations = []string{
	// 1: journal listing walks seq order.
	`CREATE INDEX IF NOT EXISTS idx_journal_seq ON journal(seq, event_id)`,
	// 2: journal --kind filters on a kind prefix.
	`CREATE INDEX IF NOT EXISTS idx_journal_kind ON journal(kind, seq)`,
}

var currentSchemaVersion = len(migrations)

// Store is the device cache: snapshot, auth guard state and sync journal.
type Store struct {
	db *sql.DB
}

// Open creates or opens the device database at path and brings its schema
// up to date. Opening an existing database again is safe.
//
// Pragmas are passed to the go-sqlite3 driver in the DSN so they hold on
// every connection: WAL journal, NORMAL synchronous, 5s busy timeout and
// foreign keys. The pool is a single connection.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open device database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to device database %s: %w", path, err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// uriPath escapes the characters SQLite's URI filename parser would treat
// as query or fragment delimiters.
var uriPath = strings.NewReplacer("%", "%25", "?", "%3f", "#", "%23")

func dsn(path string) string {
	q := url.Values{}
	q.Set("_journal_mode", "WAL")
	q.Set("_synchronous", "NORMAL")
	q.Set("_busy_timeout", "5000")
	q.Set("_foreign_keys", "1")
	return "file:" + uriPath.Replace(path) + "?" + q.Encode()
}

// Close closes the database. A zero Store closes cleanly.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// migrate applies schema.sql and any pending migrations in one transaction.
func migrate(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	var version int
	if err := tx.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	for v := version; v < len(migrations); v++ {
		if _, err := tx.Exec(migrations[v]); err != nil {
			return fmt.Errorf("migrate to v%d: %w", v+1, err)
		}
	}
	if version < currentSchemaVersion {
		if _, err := tx.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, currentSchemaVersion)); err != nil {
			return fmt.Errorf("set user_version: %w", err)
		}
	}
	return tx.Commit()
}
