package engine

import (
	"context"
	"fmt"

	"github.com/roach88/evscript/internal/ir"
)

// Scheduler multiplexes interpreters within a single goroutine, one Tick per
// rendered frame.
//
// It keeps one foreground slot for serial scripts (touch, action, autorun),
// a FIFO of foreground triggers waiting for the slot, and a background set of
// parallel scripts ticked in creation order.
//
// Thread-safety model: none. Trigger, Tick and every other method must be
// called from the goroutine that owns the frame loop.
//
// ORDERING:
//   - Foreground is ticked before background.
//   - Background interpreters are ticked in creation order every frame.
//   - Store writes are visible to every interpreter ticked later in the same
//     frame; the last write in iteration order wins.
type Scheduler struct {
	rt               *runtime
	handles          HandleGenerator
	foregroundBudget int
	backgroundBudget int

	foreground *Interpreter
	pending    []*Interpreter
	background []*Interpreter
	byHandle   map[string]*Interpreter
}

// New creates a Scheduler over env. The dispatch table is frozen.
func New(env Env, opts ...Option) *Scheduler {
	o := buildOptions(opts)
	if o.foregroundBudget <= 0 {
		o.foregroundBudget = DefaultForegroundBudget
	}
	if o.backgroundBudget <= 0 {
		o.backgroundBudget = DefaultBackgroundBudget
	}
	if o.maxCallDepth < 0 {
		o.maxCallDepth = 0
	}
	return &Scheduler{
		rt:               newRuntime(env, o),
		handles:          o.handles,
		foregroundBudget: o.foregroundBudget,
		backgroundBudget: o.backgroundBudget,
		byHandle:         make(map[string]*Interpreter),
	}
}

// Trigger starts list as a new interpreter and returns its handle.
//
// Parallel scripts join the background set. Touch, action and autorun
// scripts take the foreground slot, or queue behind the current foreground
// script until the slot frees up.
func (s *Scheduler) Trigger(list *ir.CommandList, kind ir.TriggerKind, origin ir.Origin) (string, error) {
	if list == nil {
		return "", &RuntimeError{Code: ErrCodeSchedulerFatal, Message: "trigger with nil command list"}
	}
	if kind == ir.TriggerNone || !kind.Valid() {
		return "", fmt.Errorf("invalid trigger kind %q", kind)
	}

	handle := s.handles.Generate()
	if _, dup := s.byHandle[handle]; dup {
		return "", fmt.Errorf("duplicate interpreter handle %q", handle)
	}
	in := s.rt.newInterpreter(handle, kind, list, origin, 0)
	s.byHandle[handle] = in

	switch {
	case kind.Background():
		s.background = append(s.background, in)
	case s.foreground == nil:
		s.foreground = in
	default:
		s.pending = append(s.pending, in)
	}

	s.rt.logger.Debug("script triggered",
		"handle", handle,
		"script", list.ID,
		"trigger", string(kind),
		"origin", origin.String(),
	)
	return handle, nil
}

// Tick advances one frame.
//
//  1. Promote the next pending foreground script if the slot is free.
//  2. Tick the foreground interpreter with the foreground budget.
//  3. Tick each background interpreter, in creation order, with the
//     background budget.
//  4. Remove terminated interpreters.
func (s *Scheduler) Tick(ctx context.Context) {
	s.rt.clock.Advance()

	if s.foreground == nil {
		s.promote()
	}
	if s.foreground != nil {
		s.foreground.Tick(ctx, s.foregroundBudget)
	}

	// range evaluates the slice once: scripts triggered mid-loop start next frame.
	for _, in := range s.background {
		in.Tick(ctx, s.backgroundBudget)
	}

	s.sweep()
}

// promote moves the first live pending interpreter into the foreground slot.
func (s *Scheduler) promote() {
	for len(s.pending) > 0 {
		next := s.pending[0]
		s.pending = s.pending[1:]
		if !next.terminated {
			s.foreground = next
			return
		}
	}
}

// sweep drops terminated interpreters from every slot.
func (s *Scheduler) sweep() {
	if s.foreground != nil && s.foreground.terminated {
		s.forget(s.foreground)
		s.foreground = nil
	}

	live := s.background[:0]
	for _, in := range s.background {
		if in.terminated {
			s.forget(in)
			continue
		}
		live = append(live, in)
	}
	for i := len(live); i < len(s.background); i++ {
		s.background[i] = nil
	}
	s.background = live

	pending := s.pending[:0]
	for _, in := range s.pending {
		if in.terminated {
			s.forget(in)
			continue
		}
		pending = append(pending, in)
	}
	s.pending = pending
}

func (s *Scheduler) forget(in *Interpreter) {
	delete(s.byHandle, in.handle)
	s.rt.logger.Debug("interpreter removed",
		"handle", in.handle,
		"script", in.list.ID,
	)
}

// Terminate stops the interpreter with the given handle, discarding any
// child. It is removed at the end of the next Tick. Returns false if the
// handle is unknown.
func (s *Scheduler) Terminate(handle string) bool {
	in, ok := s.byHandle[handle]
	if !ok {
		return false
	}
	in.Terminate()
	return true
}

// Teardown terminates every interpreter whose origin is on mapID, e.g. when
// the player leaves the map. Returns the number terminated.
func (s *Scheduler) Teardown(mapID int) int {
	n := 0
	for _, in := range s.all() {
		if in.origin.MapID == mapID && !in.terminated {
			in.Terminate()
			n++
		}
	}
	s.sweep()
	if n > 0 {
		s.rt.logger.Info("map torn down", "map", mapID, "terminated", n)
	}
	return n
}

// all returns foreground, pending and background interpreters in that order.
func (s *Scheduler) all() []*Interpreter {
	out := make([]*Interpreter, 0, 1+len(s.pending)+len(s.background))
	if s.foreground != nil {
		out = append(out, s.foreground)
	}
	out = append(out, s.pending...)
	out = append(out, s.background...)
	return out
}

// Lookup returns the interpreter for handle.
func (s *Scheduler) Lookup(handle string) (*Interpreter, bool) {
	in, ok := s.byHandle[handle]
	return in, ok
}

// Foreground returns the foreground interpreter, or nil.
func (s *Scheduler) Foreground() *Interpreter {
	return s.foreground
}

// Background returns the background interpreters in creation order.
func (s *Scheduler) Background() []*Interpreter {
	out := make([]*Interpreter, len(s.background))
	copy(out, s.background)
	return out
}

// Pending returns the number of queued foreground triggers.
func (s *Scheduler) Pending() int {
	return len(s.pending)
}

// Running returns every live interpreter: foreground, then pending, then
// background in creation order.
func (s *Scheduler) Running() []*Interpreter {
	var out []*Interpreter
	for _, in := range s.all() {
		if !in.terminated {
			out = append(out, in)
		}
	}
	return out
}

// Idle reports whether no interpreter is live.
func (s *Scheduler) Idle() bool {
	return len(s.Running()) == 0
}

// Frame returns the number of ticks run so far.
func (s *Scheduler) Frame() int64 {
	return s.rt.clock.Now()
}

// Diagnostics returns retained diagnostics, oldest first.
func (s *Scheduler) Diagnostics() []Diagnostic {
	return s.rt.diags.list()
}

// Dispatch returns the (frozen) dispatch table.
func (s *Scheduler) Dispatch() *Dispatch {
	return s.rt.dispatch
}

// Env returns the collaborators shared by every interpreter.
func (s *Scheduler) Env() Env {
	return s.rt.env
}
