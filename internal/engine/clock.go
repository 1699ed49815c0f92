package engine

import "sync/atomic"

// FrameClock is the scheduler's logical frame counter.
//
// Every Scheduler.Tick advances the clock by one. Frames stamp trace events
// and diagnostics so a run can be compared frame by frame; wall-clock time
// never enters the runtime.
//
// Thread-safety: FrameClock is safe for concurrent reads (atomic
// operations), so a UI goroutine may poll Now while the scheduler ticks.
type FrameClock struct {
	frame atomic.Int64
}

// NewFrameClock creates a clock at frame 0 (before the first tick).
func NewFrameClock() *FrameClock {
	return &FrameClock{}
}

// NewFrameClockAt creates a clock positioned at a given frame.
// Used when resuming a session whose frame count was persisted.
func NewFrameClockAt(frame int64) *FrameClock {
	c := &FrameClock{}
	c.frame.Store(frame)
	return c
}

// Advance moves to the next frame and returns it.
func (c *FrameClock) Advance() int64 {
	return c.frame.Add(1)
}

// Now returns the current frame without advancing.
func (c *FrameClock) Now() int64 {
	return c.frame.Load()
}
