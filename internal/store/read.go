package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/evscript/internal/ir"
)

// Get returns the value for key, or the kind's zero value when unset.
func (s *Store) Get(ctx context.Context, key Key) (ir.Value, error) {
	if err := key.Validate(); err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}

	kind, mapID, eventID, id, name := keyColumns(key)
	var valueJSON string
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM state
		WHERE kind = ? AND map_id = ? AND event_id = ? AND id = ? AND name = ?
	`, kind, mapID, eventID, id, name).Scan(&valueJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return key.Zero(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}

	return unmarshalValue(valueJSON)
}

// Snapshot returns the globals plus the self switches of origin.
func (s *Store) Snapshot(ctx context.Context, origin ir.Origin) (Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, map_id, event_id, id, name, value FROM state
		WHERE kind != ? OR (map_id = ? AND event_id = ?)
	`, string(KindSelfSwitch), origin.MapID, origin.EventID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("query snapshot: %w", err)
	}
	defer rows.Close()

	snap := NewSnapshot()
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return Snapshot{}, fmt.Errorf("snapshot: %w", err)
		}
		snap.add(e, origin)
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: %w", err)
	}

	return snap, nil
}

// Dump returns every entry in deterministic order: kind, origin, id, name.
// Returns an empty slice (not nil) for an empty store.
func (s *Store) Dump(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, map_id, event_id, id, name, value FROM state
		ORDER BY kind COLLATE BINARY ASC, map_id ASC, event_id ASC, id ASC, name COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query dump: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("dump: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dump: %w", err)
	}

	return entries, nil
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var (
		kind               string
		mapID, eventID, id int
		name, valueJSON    string
	)
	if err := rows.Scan(&kind, &mapID, &eventID, &id, &name, &valueJSON); err != nil {
		return Entry{}, fmt.Errorf("scan entry: %w", err)
	}
	v, err := unmarshalValue(valueJSON)
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		Key: Key{
			Kind:   Kind(kind),
			ID:     id,
			Origin: ir.Origin{MapID: mapID, EventID: eventID},
			Name:   name,
		},
		Value: v,
	}, nil
}
