package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/roach88/evscript/internal/ir"
)

// Handler executes one command. It runs to completion and reports how the
// interpreter should proceed.
type Handler func(ctx context.Context, in *Interpreter, cmd ir.Command) Outcome

type outcomeKind uint8

const (
	outcomeContinue outcomeKind = iota
	outcomeSuspend
	outcomeRedirect
)

// Outcome is the tri-state result of a handler.
type Outcome struct {
	kind   outcomeKind
	target int
}

// Continue advances to the next command.
func Continue() Outcome { return Outcome{kind: outcomeContinue} }

// Suspend stops this tick without advancing. If the handler set a wait
// descriptor, the command counts as complete and the interpreter moves past
// it once the wait clears; otherwise the command is retried next tick.
func Suspend() Outcome { return Outcome{kind: outcomeSuspend} }

// Redirect sets the program counter to pc.
func Redirect(pc int) Outcome { return Outcome{kind: outcomeRedirect, target: pc} }

// IsContinue reports whether o is Continue.
func (o Outcome) IsContinue() bool { return o.kind == outcomeContinue }

// IsSuspend reports whether o is Suspend.
func (o Outcome) IsSuspend() bool { return o.kind == outcomeSuspend }

// Target returns the redirect target and whether o is a Redirect.
func (o Outcome) Target() (int, bool) {
	return o.target, o.kind == outcomeRedirect
}

func (o Outcome) String() string {
	switch o.kind {
	case outcomeSuspend:
		return "suspend"
	case outcomeRedirect:
		return fmt.Sprintf("redirect(%d)", o.target)
	default:
		return "continue"
	}
}

type dispatchEntry struct {
	name    string
	handler Handler
}

// Dispatch maps opcodes to handlers.
//
// Tables are populated at startup and frozen when a Scheduler is built, so
// the set of handled opcodes is fixed before the first tick.
type Dispatch struct {
	entries map[ir.Opcode]dispatchEntry
	frozen  bool
}

// NewDispatch returns an empty table.
func NewDispatch() *Dispatch {
	return &Dispatch{entries: make(map[ir.Opcode]dispatchEntry)}
}

// DefaultDispatch returns a table with every built-in handler registered.
func DefaultDispatch() *Dispatch {
	d := NewDispatch()
	registerBuiltins(d)
	return d
}

// Register installs h for op, replacing any existing handler.
func (d *Dispatch) Register(op ir.Opcode, name string, h Handler) error {
	if d.frozen {
		return fmt.Errorf("dispatch table is frozen: cannot register %s (%d)", name, op)
	}
	if h == nil {
		return fmt.Errorf("nil handler for %s (%d)", name, op)
	}
	if name == "" {
		name = op.String()
	}
	d.entries[op] = dispatchEntry{name: name, handler: h}
	return nil
}

// RegisterExtension installs a handler in the reserved extension range.
// Opcodes outside the range and duplicates are rejected.
func (d *Dispatch) RegisterExtension(op ir.Opcode, name string, h Handler) error {
	if !op.IsExtension() {
		return fmt.Errorf("opcode %d outside extension range [%d, %d)", op, ir.ExtensionBase, ir.ExtensionLimit)
	}
	if existing, dup := d.entries[op]; dup {
		return fmt.Errorf("extension opcode %d already registered as %q", op, existing.name)
	}
	return d.Register(op, name, h)
}

// Freeze rejects further registration.
func (d *Dispatch) Freeze() {
	d.frozen = true
}

// Frozen reports whether the table is frozen.
func (d *Dispatch) Frozen() bool {
	return d.frozen
}

// Lookup returns the handler for op.
func (d *Dispatch) Lookup(op ir.Opcode) (Handler, bool) {
	e, ok := d.entries[op]
	return e.handler, ok
}

// Name returns the registered name for op, or the catalogue name.
func (d *Dispatch) Name(op ir.Opcode) string {
	if e, ok := d.entries[op]; ok {
		return e.name
	}
	return op.String()
}

// Handled returns every registered opcode in ascending order.
func (d *Dispatch) Handled() []ir.Opcode {
	ops := make([]ir.Opcode, 0, len(d.entries))
	for op := range d.entries {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })
	return ops
}

// registerBuiltins installs the built-in handlers.
func registerBuiltins(d *Dispatch) {
	builtins := map[ir.Opcode]Handler{
		ir.OpEnd:           handleNoop,
		ir.OpShowMessage:   handleShowMessage,
		ir.OpShowChoices:   handleShowChoices,
		ir.OpConditional:   handleConditional,
		ir.OpLoop:          handleLoop,
		ir.OpBreakLoop:     handleBreakLoop,
		ir.OpTerminate:     handleTerminate,
		ir.OpCallCommon:    handleCallCommon,
		ir.OpLabel:         handleNoop,
		ir.OpJumpToLabel:   handleJumpToLabel,
		ir.OpSetSwitch:     handleSetSwitch,
		ir.OpSetVariable:   handleSetVariable,
		ir.OpSetSelfSwitch: handleSetSelfSwitch,
		ir.OpTransfer:      handleTransfer,
		ir.OpMoveRoute:     handleMoveRoute,
		ir.OpShowAnimation: handleShowAnimation,
		ir.OpWait:          handleWait,
		ir.OpWaitMessage:   handleWaitMessage,
		ir.OpForceAction:   handleForceAction,
		ir.OpEvaluate:      handleEvaluate,
		ir.OpMapMutation:   handleMapMutation,
		ir.OpWhenChoice:    handleWhenChoice,
		ir.OpWhenCancel:    handleWhenCancel,
		ir.OpChoicesEnd:    handleNoop,
		ir.OpElse:          handleElse,
		ir.OpBranchEnd:     handleNoop,
		ir.OpRepeatAbove:   handleRepeatAbove,
	}
	for op, h := range builtins {
		// Cannot fail: the table is fresh and handlers are non-nil.
		_ = d.Register(op, op.String(), h)
	}
}

func handleNoop(context.Context, *Interpreter, ir.Command) Outcome {
	return Continue()
}
