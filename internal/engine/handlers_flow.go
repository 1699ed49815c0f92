package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/evscript/internal/ir"
	"github.com/roach88/evscript/internal/store"
)

// Conditional branch kinds (first parameter of conditional_branch).
const (
	condSwitch     = 0
	condVariable   = 1
	condSelfSwitch = 2
	condExpression = 12
)

// Variable comparison operators.
const (
	cmpEqual = iota
	cmpGreaterEqual
	cmpLessEqual
	cmpGreater
	cmpLess
	cmpNotEqual
)

// handleConditional evaluates the condition, records it at the command's
// indent and skips to the else or end marker when false.
func handleConditional(ctx context.Context, in *Interpreter, cmd ir.Command) Outcome {
	result := in.evalCondition(ctx, cmd)
	in.branch[cmd.Indent] = result
	if result {
		return Continue()
	}
	return in.skip(ctx, cmd, cmd.Indent, ir.OpElse, ir.OpBranchEnd)
}

// evalCondition returns the branch result. Any failure is reported and
// yields false.
func (in *Interpreter) evalCondition(ctx context.Context, cmd ir.Command) bool {
	p := cmd.Params
	kind, err := p.Int(0)
	if err != nil {
		in.badParam(ctx, cmd, err)
		return false
	}

	switch kind {
	case condSwitch:
		id, err := p.Int(1)
		if err != nil {
			in.badParam(ctx, cmd, err)
			return false
		}
		on, ok := in.getBool(ctx, cmd, store.SwitchKey(id))
		return ok && on == onOff(p.IntOr(2, 0))

	case condVariable:
		id, err := p.Int(1)
		if err != nil {
			in.badParam(ctx, cmd, err)
			return false
		}
		cur, ok := in.get(ctx, cmd, store.VariableKey(id))
		if !ok {
			return false
		}
		var ref ir.Value
		if p.IntOr(2, 0) == 0 {
			ref = p.Value(3)
		} else {
			refID, err := p.Int(3)
			if err != nil {
				in.badParam(ctx, cmd, err)
				return false
			}
			if ref, ok = in.get(ctx, cmd, store.VariableKey(refID)); !ok {
				return false
			}
		}
		result, err := compare(cur, ref, p.IntOr(4, cmpEqual))
		if err != nil {
			in.badParam(ctx, cmd, err)
			return false
		}
		return result

	case condSelfSwitch:
		name, err := p.String(1)
		if err != nil {
			in.badParam(ctx, cmd, err)
			return false
		}
		if in.origin.Neutral() {
			return false
		}
		on, ok := in.getBool(ctx, cmd, store.SelfKey(in.origin, name))
		return ok && on == onOff(p.IntOr(2, 0))

	case condExpression:
		src, err := p.String(1)
		if err != nil {
			in.badParam(ctx, cmd, err)
			return false
		}
		v, ok := in.evaluate(ctx, cmd, src)
		return ok && ir.Truthy(v)

	default:
		in.badParam(ctx, cmd, fmt.Errorf("unknown condition kind %d", kind))
		return false
	}
}

// onOff converts the authored switch encoding (0 = ON, 1 = OFF).
func onOff(v int) bool {
	return v == 0
}

func compare(a, b ir.Value, op int) (bool, error) {
	if op == cmpEqual || op == cmpNotEqual {
		eq := ir.Equal(a, b)
		if !eq {
			// 1 and 1.0 compare equal
			if x, y, ok := numbers(a, b); ok {
				eq = x == y
			}
		}
		return eq == (op == cmpEqual), nil
	}

	x, y, ok := numbers(a, b)
	if !ok {
		return false, fmt.Errorf("cannot order %T and %T", a, b)
	}
	switch op {
	case cmpGreaterEqual:
		return x >= y, nil
	case cmpLessEqual:
		return x <= y, nil
	case cmpGreater:
		return x > y, nil
	case cmpLess:
		return x < y, nil
	default:
		return false, fmt.Errorf("unknown comparison %d", op)
	}
}

// handleElse skips the else block when the branch at this indent was taken.
func handleElse(ctx context.Context, in *Interpreter, cmd ir.Command) Outcome {
	if in.branch[cmd.Indent] {
		return in.skip(ctx, cmd, cmd.Indent, ir.OpBranchEnd)
	}
	return Continue()
}

// handleLoop marks the indent loop-active and remembers the header.
func handleLoop(_ context.Context, in *Interpreter, cmd ir.Command) Outcome {
	in.loop[cmd.Indent] = true
	in.loopStart[cmd.Indent] = in.pc
	return Continue()
}

// handleRepeatAbove re-enters an active loop just after its header.
func handleRepeatAbove(_ context.Context, in *Interpreter, cmd ir.Command) Outcome {
	if in.loop[cmd.Indent] {
		return Redirect(in.loopStart[cmd.Indent] + 1)
	}
	return Continue()
}

// handleBreakLoop exits the innermost active loop at or above the command's
// indent.
func handleBreakLoop(ctx context.Context, in *Interpreter, cmd ir.Command) Outcome {
	for k := cmd.Indent; k >= 0; k-- {
		if !in.loop[k] {
			continue
		}
		in.loop[k] = false
		return in.skip(ctx, cmd, k, ir.OpRepeatAbove)
	}
	in.Report(ctx, slog.LevelWarn, ErrCodeMalformedStructure, cmd,
		fmt.Sprintf("break_loop at indent %d outside any active loop", cmd.Indent), nil)
	return Continue()
}

// handleJumpToLabel redirects to the first label with the same name.
func handleJumpToLabel(ctx context.Context, in *Interpreter, cmd ir.Command) Outcome {
	name, err := cmd.Params.String(0)
	if err != nil {
		in.badParam(ctx, cmd, err)
		return Continue()
	}
	for i, c := range in.list.Commands {
		if c.Opcode != ir.OpLabel {
			continue
		}
		if label, err := c.Params.String(0); err == nil && label == name {
			return Redirect(i)
		}
	}
	in.badParam(ctx, cmd, fmt.Errorf("label %q not found", name))
	return Continue()
}

// handleTerminate ends the interpreter, discarding any child.
func handleTerminate(_ context.Context, in *Interpreter, _ ir.Command) Outcome {
	in.Terminate()
	return Continue()
}

// handleCallCommon runs a library script as a child. The call itself
// completes immediately; the child's delegation blocks the caller.
func handleCallCommon(ctx context.Context, in *Interpreter, cmd ir.Command) Outcome {
	id, err := cmd.Params.Int(0)
	if err != nil {
		in.badParam(ctx, cmd, err)
		return Continue()
	}

	list, ok := in.rt.env.Library.Script(id)
	if !ok {
		in.badParam(ctx, cmd, fmt.Errorf("common script %d not found", id))
		return Continue()
	}

	if in.depth+1 > in.rt.maxCallDepth {
		in.Report(ctx, slog.LevelError, ErrCodeExcessiveCallDepth, cmd,
			fmt.Sprintf("call to script %d would exceed max call depth %d", id, in.rt.maxCallDepth),
			map[string]string{"script": fmt.Sprint(id), "depth": fmt.Sprint(in.depth + 1)})
		return Continue()
	}

	origin := in.origin
	if cmd.Params.Bool(1) {
		origin = ir.Origin{}
	}
	in.Call(list, origin)
	return Continue()
}
