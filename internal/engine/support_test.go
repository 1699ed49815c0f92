package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBudget(t *testing.T) {
	b := NewBudget(2)
	assert.Equal(t, 2, b.Limit())
	assert.True(t, b.Spend())
	assert.True(t, b.Spend())
	assert.False(t, b.Spend())
	assert.Equal(t, 2, b.Used())
	assert.Equal(t, 0, b.Remaining())
	assert.True(t, b.Exhausted())

	assert.False(t, NewBudget(-3).Spend())
}

func TestFrameClock(t *testing.T) {
	c := NewFrameClock()
	assert.Equal(t, int64(0), c.Now())
	assert.Equal(t, int64(1), c.Advance())
	assert.Equal(t, int64(1), c.Now())

	c = NewFrameClockAt(41)
	assert.Equal(t, int64(42), c.Advance())
}

func TestFrameClock_ConcurrentAdvance(t *testing.T) {
	c := NewFrameClock()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Advance()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(800), c.Now())
}

func TestUUIDv7Generator(t *testing.T) {
	g := UUIDv7Generator{}
	a := g.Generate()
	b := g.Generate()

	assert.NotEqual(t, a, b)
	id, err := uuid.Parse(a)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
}

func TestFixedGenerator(t *testing.T) {
	g := NewFixedGenerator("a", "b")
	assert.Equal(t, "a", g.Generate())
	assert.Equal(t, "b", g.Generate())
	assert.Panics(t, func() { g.Generate() })
}

func TestSequenceGenerator(t *testing.T) {
	g := NewSequenceGenerator("run")
	assert.Equal(t, "run-1", g.Generate())
	assert.Equal(t, "run-2", g.Generate())
}

func TestRuntimeError(t *testing.T) {
	err := &RuntimeError{Code: ErrCodeUnknownOpcode, Message: "no handler", Handle: "h-1", PC: 3}
	assert.Contains(t, err.Error(), "UNKNOWN_OPCODE")
	assert.Contains(t, err.Error(), "handle=h-1")

	wrapped := fmt.Errorf("tick: %w", err)
	assert.True(t, IsUnknownOpcode(wrapped))
	assert.False(t, IsSchedulerFatal(wrapped))
	assert.False(t, IsUnknownOpcode(fmt.Errorf("plain")))

	bare := &RuntimeError{Code: ErrCodeSchedulerFatal, Message: "nil list"}
	assert.Equal(t, "SCHEDULER_FATAL: nil list", bare.Error())
}

func TestDiagnosticRing(t *testing.T) {
	r := newDiagnosticRing(3)
	assert.Empty(t, r.list())

	for i := 0; i < 5; i++ {
		r.add(Diagnostic{Frame: int64(i), Level: slog.LevelWarn})
	}

	got := r.list()
	require.Len(t, got, 3)
	assert.Equal(t, int64(2), got[0].Frame)
	assert.Equal(t, int64(4), got[2].Frame)
	assert.Equal(t, 2, r.dropped)
}

func TestWaitReasonString(t *testing.T) {
	assert.Equal(t, "message", WaitMessage.String())
	assert.Equal(t, "forced_action", WaitForcedAction.String())
	assert.Equal(t, "wait(99)", WaitReason(99).String())
}
