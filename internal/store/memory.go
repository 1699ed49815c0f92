package store

import (
	"context"
	"sort"

	"github.com/roach88/evscript/internal/ir"
)

// Memory is an in-memory Persistent Store.
//
// Memory is not safe for concurrent use; the scheduler drives it from a
// single goroutine.
type Memory struct {
	values map[Key]ir.Value
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{values: make(map[Key]ir.Value)}
}

// Get returns the value for key, or the kind's zero value when unset.
func (m *Memory) Get(_ context.Context, key Key) (ir.Value, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	if v, ok := m.values[key]; ok {
		return v, nil
	}
	return key.Zero(), nil
}

// Set writes value for key.
func (m *Memory) Set(_ context.Context, key Key, value ir.Value) error {
	if err := key.Validate(); err != nil {
		return err
	}
	if value == nil {
		value = ir.Null{}
	}
	m.values[key] = value
	return nil
}

// Snapshot returns the state visible to origin.
func (m *Memory) Snapshot(_ context.Context, origin ir.Origin) (Snapshot, error) {
	snap := NewSnapshot()
	for k, v := range m.values {
		snap.add(Entry{Key: k, Value: v}, origin)
	}
	return snap, nil
}

// Dump returns every entry in deterministic order.
func (m *Memory) Dump(_ context.Context) ([]Entry, error) {
	entries := make([]Entry, 0, len(m.values))
	for k, v := range m.values {
		entries = append(entries, Entry{Key: k, Value: v})
	}
	sort.Slice(entries, func(i, j int) bool { return lessKey(entries[i].Key, entries[j].Key) })
	return entries, nil
}
