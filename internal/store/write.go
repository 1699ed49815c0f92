package store

import (
	"context"
	"fmt"

	"github.com/roach88/evscript/internal/ir"
)

// Set writes value for key.
// Uses ON CONFLICT ... DO UPDATE so repeated writes to a key replace it.
func (s *Store) Set(ctx context.Context, key Key, value ir.Value) error {
	if err := key.Validate(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	if value == nil {
		value = ir.Null{}
	}

	valueJSON, err := marshalValue(value)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}

	kind, mapID, eventID, id, name := keyColumns(key)
	s.seq++
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO state (kind, map_id, event_id, id, name, value, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(kind, map_id, event_id, id, name)
		DO UPDATE SET value = excluded.value, seq = excluded.seq
	`, kind, mapID, eventID, id, name, valueJSON, s.seq)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}

	return nil
}
