package store

import (
	"fmt"

	"github.com/roach88/evscript/internal/ir"
)

// marshalValue converts a Value to canonical JSON TEXT for storage.
// Canonical encoding keeps Dump output byte-stable across runs.
func marshalValue(v ir.Value) (string, error) {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("marshal value: %w", err)
	}
	return string(data), nil
}

// unmarshalValue parses stored JSON TEXT back to a Value.
// Integers beyond 2^53 survive because decoding goes through json.Number.
func unmarshalValue(data string) (ir.Value, error) {
	if data == "" {
		return ir.Null{}, nil
	}
	v, err := ir.UnmarshalValue([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal value: %w", err)
	}
	return v, nil
}

// keyColumns flattens a key into its table columns.
func keyColumns(k Key) (kind string, mapID, eventID, id int, name string) {
	return string(k.Kind), k.Origin.MapID, k.Origin.EventID, k.ID, k.Name
}
