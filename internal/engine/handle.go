package engine

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// HandleGenerator produces interpreter handles returned by Scheduler.Trigger.
// Implemented by UUIDv7Generator (production), FixedGenerator and
// SequenceGenerator (tests, golden traces).
type HandleGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 handles.
//
// UUIDv7 embeds a timestamp in the most significant bits, so handles sort
// by trigger time in logs.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined handles for testing.
//
// Thread-safety: FixedGenerator is safe for concurrent use via internal mutex.
type FixedGenerator struct {
	mu      sync.Mutex
	handles []string
	idx     int
}

// NewFixedGenerator creates a generator that returns handles in order.
//
// Example:
//
//	gen := NewFixedGenerator("a", "b")
//	gen.Generate() // "a"
//	gen.Generate() // "b"
//	gen.Generate() // panic: all handles exhausted
func NewFixedGenerator(handles ...string) *FixedGenerator {
	return &FixedGenerator{handles: handles}
}

// Generate returns the next predetermined handle.
//
// Panics if all handles have been consumed, to catch a test that triggers
// more scripts than it declared.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.handles) {
		panic("FixedGenerator: all handles exhausted")
	}
	h := g.handles[g.idx]
	g.idx++
	return h
}

// SequenceGenerator produces "<prefix>-1", "<prefix>-2", ... and never runs
// out. The CLI uses it for trace output that must be identical across runs.
type SequenceGenerator struct {
	prefix string
	seq    *FrameClock
}

// NewSequenceGenerator creates a sequence generator with the given prefix.
func NewSequenceGenerator(prefix string) *SequenceGenerator {
	return &SequenceGenerator{prefix: prefix, seq: NewFrameClock()}
}

// Generate returns the next handle in the sequence.
func (g *SequenceGenerator) Generate() string {
	return fmt.Sprintf("%s-%d", g.prefix, g.seq.Advance())
}
