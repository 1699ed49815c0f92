// Package expr evaluates the authored expressions used by conditional
// branches, variable operands and the evaluate command.
//
// Expressions are CUE expressions evaluated against a read-only scope:
//
//	switches[1] && variables[3] > 10
//	local.A || origin.map == 4
//	variables[2] * 3 + 1
//
// local holds the self switches of the script's origin.
//
// CUE has no side-effecting constructs outside the tool packages, which only
// run under the cue command, so an expression can read the scope but never
// change game state.
package expr

import (
	"fmt"

	"github.com/roach88/evscript/internal/ir"
	"github.com/roach88/evscript/internal/store"
)

// MaxIndexed bounds the switch and variable IDs exposed to expressions.
// Entries above it are left out of the scope, and the set_switch and
// set_variable ranges stop at it.
const MaxIndexed = 1 << 14

// SelfSwitchNames are always present in the local struct, so unset ones read
// as false instead of failing the lookup.
var SelfSwitchNames = []string{"A", "B", "C", "D"}

// Scope is the read-only state visible to one evaluation.
type Scope struct {
	Origin ir.Origin
	State  store.Snapshot
}

// Evaluator evaluates an expression against a scope.
type Evaluator interface {
	Evaluate(expr string, scope Scope) (ir.Value, error)
}

// Func adapts a plain function to Evaluator.
type Func func(expr string, scope Scope) (ir.Value, error)

// Evaluate calls f.
func (f Func) Evaluate(expr string, scope Scope) (ir.Value, error) {
	return f(expr, scope)
}

// EvalError reports a failed evaluation.
type EvalError struct {
	Expr    string
	Message string
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("evaluate %q: %s", e.Expr, e.Message)
}

// reach is the highest switch and variable ID an expression can read.
type reach struct {
	switches  int
	variables int
}

// bindings flattens the scope into plain Go values for encoding.
// Switch and variable IDs become list indexes so expressions read them as
// switches[n] and variables[n]. The lists cover every written ID and every
// ID in r, so unwritten entries read as the zero value like a store Get.
func (s Scope) bindings(r reach) map[string]any {
	maxSwitch, maxVar := min(r.switches, MaxIndexed), min(r.variables, MaxIndexed)
	for id := range s.State.Switches {
		if id > maxSwitch && id <= MaxIndexed {
			maxSwitch = id
		}
	}
	for id := range s.State.Variables {
		if id > maxVar && id <= MaxIndexed {
			maxVar = id
		}
	}

	switches := make([]any, maxSwitch+1)
	for i := range switches {
		switches[i] = false
	}
	for id, on := range s.State.Switches {
		if id >= 0 && id <= maxSwitch {
			switches[id] = on
		}
	}

	variables := make([]any, maxVar+1)
	for i := range variables {
		variables[i] = int64(0)
	}
	for id, v := range s.State.Variables {
		if id >= 0 && id <= maxVar {
			variables[id] = ir.ToAny(v)
		}
	}

	local := make(map[string]any, len(SelfSwitchNames)+len(s.State.Self))
	for _, name := range SelfSwitchNames {
		local[name] = false
	}
	for name, on := range s.State.Self {
		local[name] = on
	}

	return map[string]any{
		"switches":  switches,
		"variables": variables,
		"local":     local,
		"origin": map[string]any{
			"map":   int64(s.Origin.MapID),
			"event": int64(s.Origin.EventID),
		},
	}
}
