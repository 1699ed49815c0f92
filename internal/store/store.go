package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// migration upgrades a database to version.
type migration struct {
	version int
	stmt    string
}

// migrations run in order on databases whose user_version is below theirs.
// New databases get the same objects from schema.sql, so every statement
// must be idempotent.
var migrations = []migration{
	// v1: per-origin index for Snapshot.
	{1, "CREATE INDEX IF NOT EXISTS idx_state_origin ON state(map_id, event_id)"},
}

// currentSchemaVersion is the user_version of a fully migrated database.
var currentSchemaVersion = migrations[len(migrations)-1].version

// pragmas configure every connection: WAL for reads during writes, NORMAL
// sync, and a 5s busy timeout.
var pragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA busy_timeout = 5000",
}

// Store is the SQLite-backed Persistent Store. It holds one row per switch,
// variable and self switch.
type Store struct {
	db *sql.DB
	// seq orders writes; it is restored from the table on open so writes
	// made across sessions stay monotonic.
	seq int64
}

// Open creates or opens the database at path, applying pragmas, the schema
// and pending migrations. Opening an existing database is safe.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s, err := initialize(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func initialize(db *sql.DB) (*Store, error) {
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("failed to execute %q: %w", p, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return nil, fmt.Errorf("failed to execute schema: %w", err)
	}
	if err := migrate(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	var seq int64
	if err := db.QueryRow("SELECT COALESCE(MAX(seq), 0) FROM state").Scan(&seq); err != nil {
		return nil, fmt.Errorf("failed to read sequence: %w", err)
	}
	return &Store{db: db, seq: seq}, nil
}

// migrate applies every migration newer than the database's user_version.
func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	for _, m := range migrations {
		if m.version <= version {
			continue
		}
		if _, err := db.Exec(m.stmt); err != nil {
			return fmt.Errorf("migrate to v%d: %w", m.version, err)
		}
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
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

// Reset deletes all stored state.
func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM state"); err != nil {
		return fmt.Errorf("reset state: %w", err)
	}
	return nil
}
