package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/roach88/evscript/internal/expr"
	"github.com/roach88/evscript/internal/ir"
)

// State is the interpreter's execution state.
type State int

const (
	StateRunning State = iota
	StateWaiting
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateWaiting:
		return "waiting"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Interpreter executes one command list.
//
// An interpreter is resumable: Tick runs commands until the budget is spent,
// a handler suspends, or a child is called, and the next Tick picks up where
// the previous one stopped. All state lives on the struct; nothing is kept on
// the Go stack between ticks.
//
// Interpreters are not safe for concurrent use.
type Interpreter struct {
	rt      *runtime
	handle  string
	trigger ir.TriggerKind
	list    *ir.CommandList
	origin  ir.Origin
	depth   int

	pc int

	// Indent-keyed construct state. An entry is overwritten whenever a new
	// construct opens at that indent.
	branch    map[int]bool
	loop      map[int]bool
	loopStart map[int]int
	choice    map[int]int

	wait       *WaitDescriptor
	child      *Interpreter
	terminated bool
}

// NewInterpreter creates a standalone interpreter outside any scheduler.
// Scheduler-only options (budgets) are ignored.
func NewInterpreter(list *ir.CommandList, origin ir.Origin, env Env, opts ...Option) *Interpreter {
	o := buildOptions(opts)
	rt := newRuntime(env, o)
	return rt.newInterpreter(o.handles.Generate(), ir.TriggerNone, list, origin, 0)
}

func (rt *runtime) newInterpreter(handle string, trigger ir.TriggerKind, list *ir.CommandList, origin ir.Origin, depth int) *Interpreter {
	return &Interpreter{
		rt:        rt,
		handle:    handle,
		trigger:   trigger,
		list:      list,
		origin:    origin,
		depth:     depth,
		branch:    make(map[int]bool),
		loop:      make(map[int]bool),
		loopStart: make(map[int]int),
		choice:    make(map[int]int),
	}
}

// Tick runs the interpreter for at most budget commands and returns how many
// were executed.
//
// Per tick:
//  1. A terminated interpreter does nothing.
//  2. An active child is ticked instead, with the same budget.
//  3. A waiting interpreter re-evaluates its wait predicate. The tick on
//     which the predicate clears only transitions back to running; fetching
//     resumes on the following tick.
//  4. Otherwise commands are fetched and dispatched until the budget is
//     spent, a handler suspends, a child is called, or the list ends.
func (in *Interpreter) Tick(ctx context.Context, budget int) int {
	b := NewBudget(budget)
	in.tick(ctx, b)
	return b.Used()
}

func (in *Interpreter) tick(ctx context.Context, b *Budget) {
	if in.terminated {
		return
	}
	if in.list == nil {
		in.fatal(ctx, ir.Command{}, "command list is nil")
		return
	}

	if in.child != nil {
		if !in.child.terminated {
			in.child.tick(ctx, b)
			return
		}
		in.child = nil
	}

	if in.wait != nil {
		if in.waiting() {
			return
		}
		resume := in.wait.resume
		in.wait = nil
		in.pc = resume
		in.rt.logger.Debug("wait cleared",
			"handle", in.handle,
			"depth", in.depth,
			"pc", in.pc,
		)
		if in.pc >= in.list.Len() {
			in.finish()
		}
		return
	}

	n := in.list.Len()
	for {
		if in.terminated || in.child != nil || in.wait != nil {
			return
		}
		if in.pc >= n {
			in.finish()
			return
		}
		if ctx.Err() != nil || !b.Spend() {
			return
		}

		pc := in.pc
		cmd := in.list.At(pc)
		h, ok := in.rt.dispatch.Lookup(cmd.Opcode)
		if !ok {
			in.Report(ctx, slog.LevelWarn, ErrCodeUnknownOpcode, cmd,
				fmt.Sprintf("no handler for opcode %d, skipped", cmd.Opcode), nil)
			in.observe(pc, cmd, "unknown")
			in.pc++
			continue
		}

		out, ok := in.invoke(ctx, h, cmd)
		if !ok {
			return
		}
		in.observe(pc, cmd, out.String())
		if in.terminated {
			return
		}
		if stop := in.apply(ctx, cmd, out); stop {
			return
		}
	}
}

// apply moves the program counter according to out and records where a
// wait set by the handler resumes. It reports whether the tick ends here:
// a Suspend always yields the rest of the frame.
func (in *Interpreter) apply(ctx context.Context, cmd ir.Command, out Outcome) bool {
	switch out.kind {
	case outcomeContinue:
		in.pc++
		if in.wait != nil {
			in.wait.resume = in.pc
		}
	case outcomeSuspend:
		if in.wait != nil {
			in.wait.resume = in.pc + 1
		}
		return true
	case outcomeRedirect:
		if out.target < 0 || out.target > in.list.Len() {
			in.fatal(ctx, cmd, fmt.Sprintf("redirect target %d out of range [0, %d]", out.target, in.list.Len()))
			return true
		}
		in.pc = out.target
		if in.wait != nil {
			in.wait.resume = in.pc
		}
	}
	return false
}

// invoke calls h, converting a panic into a fatal termination.
func (in *Interpreter) invoke(ctx context.Context, h Handler, cmd ir.Command) (out Outcome, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			in.fatal(ctx, cmd, fmt.Sprintf("handler panic: %v", r))
			ok = false
		}
	}()
	return h(ctx, in, cmd), true
}

func (in *Interpreter) observe(pc int, cmd ir.Command, outcome string) {
	if in.rt.observer == nil {
		return
	}
	in.rt.observer(TraceEvent{
		Frame:   in.rt.clock.Now(),
		Handle:  in.handle,
		Depth:   in.depth,
		Script:  in.list.ID,
		PC:      pc,
		Opcode:  cmd.Opcode,
		Name:    in.rt.dispatch.Name(cmd.Opcode),
		Outcome: outcome,
	})
}

// finish terminates after the list is exhausted.
func (in *Interpreter) finish() {
	in.terminated = true
	in.wait = nil
	in.child = nil
	in.rt.logger.Debug("interpreter finished",
		"handle", in.handle,
		"depth", in.depth,
		"script", in.list.ID,
	)
}

// fatal reports SCHEDULER_FATAL and terminates the interpreter.
func (in *Interpreter) fatal(ctx context.Context, cmd ir.Command, msg string) {
	in.Report(ctx, slog.LevelError, ErrCodeSchedulerFatal, cmd, msg, nil)
	in.Terminate()
}

// Terminate stops the interpreter immediately. An active child is discarded
// without running its remaining commands.
func (in *Interpreter) Terminate() {
	if in.child != nil {
		in.child.Terminate()
		in.child = nil
	}
	in.wait = nil
	in.terminated = true
}

// Report records a diagnostic at the current command and logs it.
func (in *Interpreter) Report(ctx context.Context, level slog.Level, code RuntimeErrorCode, cmd ir.Command, msg string, details map[string]string) *RuntimeError {
	err := &RuntimeError{
		Code:    code,
		Message: msg,
		Handle:  in.handle,
		PC:      in.pc,
		Opcode:  cmd.Opcode,
		Details: details,
	}

	attrs := []any{
		"code", string(code),
		"handle", in.handle,
		"depth", in.depth,
		"pc", in.pc,
		"opcode", cmd.Opcode.String(),
	}
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, k, details[k])
	}
	in.rt.logger.Log(ctx, level, msg, attrs...)

	in.rt.diags.add(Diagnostic{Frame: in.rt.clock.Now(), Level: level, Err: err})
	return err
}

// SetWait suspends the interpreter until the descriptor's predicate clears.
// Handlers that call SetWait return Suspend.
func (in *Interpreter) SetWait(w WaitDescriptor) {
	w.resume = in.pc + 1
	in.wait = &w
}

// Call starts list as a child interpreter. The caller does not fetch again
// until the child terminates.
func (in *Interpreter) Call(list *ir.CommandList, origin ir.Origin) *Interpreter {
	child := in.rt.newInterpreter(in.handle, in.trigger, list, origin, in.depth+1)
	in.child = child
	in.rt.logger.Debug("child started",
		"handle", in.handle,
		"depth", child.depth,
		"script", list.ID,
	)
	return child
}

// Scope returns the read-only expression scope for this interpreter.
func (in *Interpreter) Scope(ctx context.Context) (expr.Scope, error) {
	snap, err := in.rt.env.Store.Snapshot(ctx, in.origin)
	if err != nil {
		return expr.Scope{}, err
	}
	return expr.Scope{Origin: in.origin, State: snap}, nil
}

// IsRunning reports whether the interpreter has not terminated.
func (in *Interpreter) IsRunning() bool { return !in.terminated }

// Terminated reports whether the interpreter has terminated.
func (in *Interpreter) Terminated() bool { return in.terminated }

// State returns the execution state. An interpreter delegating to a child
// reports running.
func (in *Interpreter) State() State {
	switch {
	case in.terminated:
		return StateTerminated
	case in.wait != nil:
		return StateWaiting
	default:
		return StateRunning
	}
}

// Handle returns the scheduler handle; children share their root's handle.
func (in *Interpreter) Handle() string { return in.handle }

// Trigger returns how the interpreter was started.
func (in *Interpreter) Trigger() ir.TriggerKind { return in.trigger }

// List returns the command list being executed.
func (in *Interpreter) List() *ir.CommandList { return in.list }

// PC returns the program counter.
func (in *Interpreter) PC() int { return in.pc }

// Origin returns the origin context used for self switches.
func (in *Interpreter) Origin() ir.Origin { return in.origin }

// Depth returns the call depth, 0 for a top-level interpreter.
func (in *Interpreter) Depth() int { return in.depth }

// Child returns the active child, or nil.
func (in *Interpreter) Child() *Interpreter { return in.child }

// Env returns the collaborators.
func (in *Interpreter) Env() Env { return in.rt.env }

// Logger returns the interpreter's logger.
func (in *Interpreter) Logger() *slog.Logger { return in.rt.logger }

// Wait returns a copy of the wait descriptor and whether one is set.
func (in *Interpreter) Wait() (WaitDescriptor, bool) {
	if in.wait == nil {
		return WaitDescriptor{}, false
	}
	return *in.wait, true
}

// Diagnostics returns the diagnostics recorded by this interpreter's
// runtime, oldest first.
func (in *Interpreter) Diagnostics() []Diagnostic {
	return in.rt.diags.list()
}

// Frame describes one level of the call stack.
type Frame struct {
	Handle string `json:"handle"`
	Script int    `json:"script"`
	Depth  int    `json:"depth"`
	PC     int    `json:"pc"`
	State  string `json:"state"`
}

// Stack returns the call stack from this interpreter down to the innermost
// active child.
func (in *Interpreter) Stack() []Frame {
	var frames []Frame
	for cur := in; cur != nil; cur = cur.child {
		id := 0
		if cur.list != nil {
			id = cur.list.ID
		}
		frames = append(frames, Frame{
			Handle: cur.handle,
			Script: id,
			Depth:  cur.depth,
			PC:     cur.pc,
			State:  cur.State().String(),
		})
	}
	return frames
}
