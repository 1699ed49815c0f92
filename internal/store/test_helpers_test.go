package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/roach88/evscript/internal/ir"
)

// state is the surface shared by Memory and Store.
type state interface {
	Get(ctx context.Context, key Key) (ir.Value, error)
	Set(ctx context.Context, key Key, value ir.Value) error
	Snapshot(ctx context.Context, origin ir.Origin) (Snapshot, error)
	Dump(ctx context.Context) ([]Entry, error)
}

// createTestStore creates a new SQLite store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// backends returns every store implementation under a name.
func backends(t *testing.T) map[string]state {
	t.Helper()
	return map[string]state{
		"memory": NewMemory(),
		"sqlite": createTestStore(t),
	}
}

// verifyPragma checks that a pragma has the expected value.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	if err := s.db.QueryRow(fmt.Sprintf("PRAGMA %s", name)).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
