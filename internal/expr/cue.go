package expr

import (
	"fmt"
	"strconv"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/ast"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/parser"
	"cuelang.org/go/cue/token"

	"github.com/roach88/evscript/internal/ir"
)

// CUE evaluates expressions with the CUE SDK.
//
// A CUE is not safe for concurrent use; the scheduler calls it from its
// single tick goroutine.
type CUE struct {
	ctx *cue.Context
}

// NewCUE creates an evaluator with a fresh CUE context.
func NewCUE() *CUE {
	return &CUE{ctx: cuecontext.New()}
}

// Evaluate compiles src with the scope's bindings in lexical scope and
// returns the concrete result.
func (c *CUE) Evaluate(src string, scope Scope) (ir.Value, error) {
	if strings.TrimSpace(src) == "" {
		return nil, &EvalError{Expr: src, Message: "empty expression"}
	}

	r, err := indexReach(src)
	if err != nil {
		return nil, &EvalError{Expr: src, Message: firstError(err)}
	}

	scopeVal := c.ctx.Encode(scope.bindings(r))
	if err := scopeVal.Err(); err != nil {
		return nil, &EvalError{Expr: src, Message: fmt.Sprintf("encode scope: %v", err)}
	}

	v := c.ctx.CompileString(src, cue.Filename("expr"), cue.Scope(scopeVal))
	if err := v.Err(); err != nil {
		return nil, &EvalError{Expr: src, Message: firstError(err)}
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, &EvalError{Expr: src, Message: firstError(err)}
	}

	out, err := FromCUE(v)
	if err != nil {
		return nil, &EvalError{Expr: src, Message: err.Error()}
	}
	return out, nil
}

// indexReach finds the highest switches[n] and variables[n] index in src.
// A computed index can name any ID, so it reaches MaxIndexed.
func indexReach(src string) (reach, error) {
	x, err := parser.ParseExpr("expr", src)
	if err != nil {
		return reach{}, err
	}
	var r reach
	ast.Walk(x, func(n ast.Node) bool {
		ix, ok := n.(*ast.IndexExpr)
		if !ok {
			return true
		}
		id, ok := ix.X.(*ast.Ident)
		if !ok {
			return true
		}
		at := MaxIndexed
		if lit, ok := ix.Index.(*ast.BasicLit); ok && lit.Kind == token.INT {
			if v, err := strconv.Atoi(lit.Value); err == nil && v >= 0 && v < MaxIndexed {
				at = v
			}
		}
		switch id.Name {
		case "switches":
			r.switches = max(r.switches, at)
		case "variables":
			r.variables = max(r.variables, at)
		}
		return true
	}, nil)
	return r, nil
}

// FromCUE converts a concrete CUE value to an ir.Value. Script compilation
// uses it for command parameters.
func FromCUE(v cue.Value) (ir.Value, error) {
	switch v.IncompleteKind() {
	case cue.NullKind:
		return ir.Null{}, nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, err
		}
		return ir.Bool(b), nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, err
		}
		return ir.Int(n), nil
	case cue.FloatKind, cue.NumberKind:
		f, err := v.Float64()
		if err != nil {
			return nil, err
		}
		return ir.Float(f), nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, err
		}
		return ir.String(s), nil
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, err
		}
		arr := ir.Array{}
		for iter.Next() {
			e, err := FromCUE(iter.Value())
			if err != nil {
				return nil, err
			}
			arr = append(arr, e)
		}
		return arr, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, err
		}
		obj := ir.Object{}
		for iter.Next() {
			e, err := FromCUE(iter.Value())
			if err != nil {
				return nil, err
			}
			obj[iter.Label()] = e
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported result kind %v", v.IncompleteKind())
	}
}

// firstError returns the first message of a possibly multi-error CUE error.
func firstError(err error) string {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err.Error()
	}
	return errs[0].Error()
}
