package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/roach88/evscript/internal/expr"
	"github.com/roach88/evscript/internal/ir"
	"github.com/roach88/evscript/internal/store"
)

// Variable operations (third parameter of set_variable).
const (
	varSet = iota
	varAdd
	varSub
	varMul
	varDiv
	varMod
)

// Operand kinds (fourth parameter of set_variable).
const (
	operandConstant = iota
	operandVariable
	operandExpression
)

// handleSetSwitch sets switches [from, to] to the authored value.
func handleSetSwitch(ctx context.Context, in *Interpreter, cmd ir.Command) Outcome {
	from, to, ok := in.idRange(ctx, cmd)
	if !ok {
		return Continue()
	}
	value := ir.Bool(onOff(cmd.Params.IntOr(2, 0)))
	for id := from; id <= to; id++ {
		if !in.set(ctx, cmd, store.SwitchKey(id), value) {
			break
		}
	}
	return Continue()
}

// handleSetVariable applies an arithmetic operation to variables [from, to].
// Division and modulo by zero leave the variable unchanged.
func handleSetVariable(ctx context.Context, in *Interpreter, cmd ir.Command) Outcome {
	from, to, ok := in.idRange(ctx, cmd)
	if !ok {
		return Continue()
	}
	p := cmd.Params
	op := p.IntOr(2, varSet)

	var operand ir.Value
	switch kind := p.IntOr(3, operandConstant); kind {
	case operandConstant:
		operand = p.Value(4)
	case operandVariable:
		id, err := p.Int(4)
		if err != nil {
			in.badParam(ctx, cmd, err)
			return Continue()
		}
		if operand, ok = in.get(ctx, cmd, store.VariableKey(id)); !ok {
			return Continue()
		}
	case operandExpression:
		src, err := p.String(4)
		if err != nil {
			in.badParam(ctx, cmd, err)
			return Continue()
		}
		if operand, ok = in.evaluate(ctx, cmd, src); !ok {
			return Continue()
		}
	default:
		in.badParam(ctx, cmd, fmt.Errorf("unknown operand kind %d", kind))
		return Continue()
	}

	for id := from; id <= to; id++ {
		key := store.VariableKey(id)
		cur, ok := in.get(ctx, cmd, key)
		if !ok {
			break
		}
		next, changed, err := operate(op, cur, operand)
		if err != nil {
			in.badParam(ctx, cmd, err)
			break
		}
		if changed && !in.set(ctx, cmd, key, next) {
			break
		}
	}
	return Continue()
}

// operate computes cur <op> operand. changed is false when the variable is
// left as is (division or modulo by zero).
func operate(op int, cur, operand ir.Value) (ir.Value, bool, error) {
	if op == varSet {
		return operand, true, nil
	}

	a, aok := cur.(ir.Int)
	b, bok := operand.(ir.Int)
	if aok && bok {
		switch op {
		case varAdd:
			return a + b, true, nil
		case varSub:
			return a - b, true, nil
		case varMul:
			return a * b, true, nil
		case varDiv:
			if b == 0 {
				return cur, false, nil
			}
			return a / b, true, nil
		case varMod:
			if b == 0 {
				return cur, false, nil
			}
			return a % b, true, nil
		}
		return nil, false, fmt.Errorf("unknown variable operation %d", op)
	}

	x, y, ok := numbers(cur, operand)
	if !ok {
		return nil, false, fmt.Errorf("operation %d needs numbers, got %T and %T", op, cur, operand)
	}
	switch op {
	case varAdd:
		return ir.Float(x + y), true, nil
	case varSub:
		return ir.Float(x - y), true, nil
	case varMul:
		return ir.Float(x * y), true, nil
	case varDiv:
		if y == 0 {
			return cur, false, nil
		}
		return ir.Float(x / y), true, nil
	case varMod:
		if y == 0 {
			return cur, false, nil
		}
		return ir.Float(math.Mod(x, y)), true, nil
	}
	return nil, false, fmt.Errorf("unknown variable operation %d", op)
}

// numbers converts a pair of numeric values to float64.
func numbers(a, b ir.Value) (float64, float64, bool) {
	x, ok := number(a)
	if !ok {
		return 0, 0, false
	}
	y, ok := number(b)
	if !ok {
		return 0, 0, false
	}
	return x, y, true
}

func number(v ir.Value) (float64, bool) {
	switch n := v.(type) {
	case ir.Int:
		return float64(n), true
	case ir.Float:
		return float64(n), true
	default:
		return 0, false
	}
}

// handleSetSelfSwitch sets a self switch of the interpreter's origin. It is
// a no-op in the neutral context.
func handleSetSelfSwitch(ctx context.Context, in *Interpreter, cmd ir.Command) Outcome {
	name, err := cmd.Params.String(0)
	if err != nil {
		in.badParam(ctx, cmd, err)
		return Continue()
	}
	if in.origin.Neutral() {
		in.rt.logger.Debug("self switch ignored in neutral context",
			"handle", in.handle,
			"pc", in.pc,
			"name", name,
		)
		return Continue()
	}
	in.set(ctx, cmd, store.SelfKey(in.origin, name), ir.Bool(onOff(cmd.Params.IntOr(1, 0))))
	return Continue()
}

// handleEvaluate evaluates an expression, storing the result in a variable
// when one is given.
func handleEvaluate(ctx context.Context, in *Interpreter, cmd ir.Command) Outcome {
	src, err := cmd.Params.String(0)
	if err != nil {
		in.badParam(ctx, cmd, err)
		return Continue()
	}
	v, ok := in.evaluate(ctx, cmd, src)
	if !ok || !cmd.Params.Has(1) {
		return Continue()
	}
	id, err := cmd.Params.Int(1)
	if err != nil {
		in.badParam(ctx, cmd, err)
		return Continue()
	}
	in.set(ctx, cmd, store.VariableKey(id), v)
	return Continue()
}

// idRange reads the [from, to] ID range of set_switch and set_variable.
// A missing or smaller to means a single ID. A range may span at most
// expr.MaxIndexed IDs.
func (in *Interpreter) idRange(ctx context.Context, cmd ir.Command) (int, int, bool) {
	from, err := cmd.Params.Int(0)
	if err != nil {
		in.badParam(ctx, cmd, err)
		return 0, 0, false
	}
	to := cmd.Params.IntOr(1, from)
	if to < from {
		to = from
	}
	if int64(to)-int64(from) >= expr.MaxIndexed {
		in.badParam(ctx, cmd, fmt.Errorf("id range [%d, %d] spans more than %d ids", from, to, expr.MaxIndexed))
		return 0, 0, false
	}
	return from, to, true
}

// get reads key, reporting collaborator failures.
func (in *Interpreter) get(ctx context.Context, cmd ir.Command, key store.Key) (ir.Value, bool) {
	v, err := in.rt.env.Store.Get(ctx, key)
	if err != nil {
		in.collaboratorFailed(ctx, cmd, "store", err)
		return nil, false
	}
	return v, true
}

func (in *Interpreter) getBool(ctx context.Context, cmd ir.Command, key store.Key) (bool, bool) {
	v, ok := in.get(ctx, cmd, key)
	if !ok {
		return false, false
	}
	return ir.Truthy(v), true
}

// set writes key, reporting collaborator failures.
func (in *Interpreter) set(ctx context.Context, cmd ir.Command, key store.Key, v ir.Value) bool {
	if err := in.rt.env.Store.Set(ctx, key, v); err != nil {
		in.collaboratorFailed(ctx, cmd, "store", err)
		return false
	}
	return true
}

// evaluate runs the expression evaluator against this interpreter's scope.
// A failure is reported as EXPRESSION_FAILED with the expression and index.
func (in *Interpreter) evaluate(ctx context.Context, cmd ir.Command, src string) (ir.Value, bool) {
	scope, err := in.Scope(ctx)
	if err != nil {
		in.collaboratorFailed(ctx, cmd, "store", err)
		return nil, false
	}
	v, err := in.rt.env.Eval.Evaluate(src, scope)
	if err != nil {
		in.Report(ctx, slog.LevelWarn, ErrCodeExpressionFailed, cmd,
			fmt.Sprintf("expression failed: %v", err),
			map[string]string{"expr": src, "index": fmt.Sprint(in.pc)})
		return nil, false
	}
	return v, true
}

func (in *Interpreter) badParam(ctx context.Context, cmd ir.Command, err error) {
	in.Report(ctx, slog.LevelWarn, ErrCodeBadParameter, cmd, err.Error(), nil)
}

func (in *Interpreter) collaboratorFailed(ctx context.Context, cmd ir.Command, who string, err error) {
	in.Report(ctx, slog.LevelWarn, ErrCodeCollaboratorFailed, cmd,
		fmt.Sprintf("%s: %v", who, err), map[string]string{"collaborator": who})
}
