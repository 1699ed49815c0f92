package harness

import (
	"context"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/roach88/evscript/internal/engine"
	"github.com/roach88/evscript/internal/ir"
	"github.com/roach88/evscript/internal/store"
)

// maxTraceLines bounds the trace excerpt printed with a failed assertion.
const maxTraceLines = 20

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string              // Assertion type for categorization
	Expected string              // Human-readable expected outcome
	Actual   string              // Human-readable actual outcome
	Trace    []engine.TraceEvent // Trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		trace := e.Trace
		if len(trace) > maxTraceLines {
			fmt.Fprintf(&buf, "\nLast %d of %d trace events:\n", maxTraceLines, len(trace))
			trace = trace[len(trace)-maxTraceLines:]
		} else {
			fmt.Fprintf(&buf, "\nFull trace:\n")
		}
		for _, ev := range trace {
			fmt.Fprintf(&buf, "  frame %d %s script %d pc %d %s -> %s\n",
				ev.Frame, ev.Handle, ev.Script, ev.PC, ev.Name, ev.Outcome)
		}
	}
	return buf.String()
}

// AssertionContext provides access to the store for state assertions.
type AssertionContext struct {
	Store engine.Store
	Ctx   context.Context
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluateAssertion(result, a, actx); err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d (%s): %v", i, a.Type, err))
		}
	}
	return errs
}

func evaluateAssertion(result *Result, a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertMessages:
		return assertSequence(AssertMessages, a.Texts, result.Messages, result.Trace)
	case AssertMutations:
		return assertSequence(AssertMutations, a.Kinds, result.Mutations, result.Trace)
	case AssertVariable:
		return assertValue(actx, AssertVariable, store.VariableKey(a.ID), a.Value, result.Trace)
	case AssertSwitch:
		return assertValue(actx, AssertSwitch, store.SwitchKey(a.ID), a.Value, result.Trace)
	case AssertSelfSwitch:
		origin := ir.Origin{MapID: a.Map, EventID: a.Event}
		return assertValue(actx, AssertSelfSwitch, store.SelfKey(origin, a.Name), a.Value, result.Trace)
	case AssertIdle:
		if !result.Idle {
			return &AssertionError{
				Type:     AssertIdle,
				Expected: "no live interpreters",
				Actual:   fmt.Sprintf("still running after %d frames", result.Frames),
				Trace:    result.Trace,
			}
		}
		return nil
	case AssertDiagnostic:
		return assertDiagnostic(result, a)
	case AssertTraceCount:
		return assertTraceCount(result.Trace, a)
	case AssertTraceOrder:
		return assertTraceOrder(result.Trace, a)
	case AssertFrames:
		if result.Frames != int64(*a.Count) {
			return &AssertionError{
				Type:     AssertFrames,
				Expected: fmt.Sprintf("%d frames", *a.Count),
				Actual:   fmt.Sprintf("%d frames", result.Frames),
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func assertSequence(kind string, want, got []string, trace []engine.TraceEvent) error {
	if want == nil {
		want = []string{}
	}
	if got == nil {
		got = []string{}
	}
	if reflect.DeepEqual(want, got) {
		return nil
	}
	return &AssertionError{
		Type:     kind,
		Expected: fmt.Sprintf("%q", want),
		Actual:   fmt.Sprintf("%q", got),
		Trace:    trace,
	}
}

// assertValue compares a stored value with the authored one. Numbers
// compare by value, so 3 matches 3.0.
func assertValue(actx *AssertionContext, kind string, key store.Key, want any, trace []engine.TraceEvent) error {
	expected, err := ir.FromAny(want)
	if err != nil {
		return fmt.Errorf("expected value: %w", err)
	}
	actual, err := actx.Store.Get(actx.Ctx, key)
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}
	if valuesMatch(expected, actual) {
		return nil
	}
	return &AssertionError{
		Type:     kind,
		Expected: fmt.Sprintf("%s = %s", key, formatValue(expected)),
		Actual:   fmt.Sprintf("%s = %s", key, formatValue(actual)),
		Trace:    trace,
	}
}

func valuesMatch(a, b ir.Value) bool {
	if ir.Equal(a, b) {
		return true
	}
	x, xok := asFloat(a)
	y, yok := asFloat(b)
	return xok && yok && x == y
}

func asFloat(v ir.Value) (float64, bool) {
	switch n := v.(type) {
	case ir.Int:
		return float64(n), true
	case ir.Float:
		return float64(n), true
	}
	return 0, false
}

func formatValue(v ir.Value) string {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func assertDiagnostic(result *Result, a Assertion) error {
	n := 0
	for _, code := range result.DiagnosticCodes() {
		if code == a.Code {
			n++
		}
	}
	if a.Count == nil {
		if n > 0 {
			return nil
		}
		return &AssertionError{
			Type:     AssertDiagnostic,
			Expected: fmt.Sprintf("at least one %s diagnostic", a.Code),
			Actual:   fmt.Sprintf("diagnostics %v", result.DiagnosticCodes()),
			Trace:    result.Trace,
		}
	}
	if n != *a.Count {
		return &AssertionError{
			Type:     AssertDiagnostic,
			Expected: fmt.Sprintf("%d %s diagnostics", *a.Count, a.Code),
			Actual:   fmt.Sprintf("%d (all: %v)", n, result.DiagnosticCodes()),
			Trace:    result.Trace,
		}
	}
	return nil
}

// opName normalizes an opcode given by catalogue name or number.
func opName(op string) string {
	if code, ok := ir.ParseOpcode(op); ok {
		return code.String()
	}
	if n, err := strconv.Atoi(op); err == nil {
		return ir.Opcode(n).String()
	}
	return op
}

func assertTraceCount(trace []engine.TraceEvent, a Assertion) error {
	name := opName(a.Op)
	n := 0
	for _, ev := range trace {
		if ev.Name == name {
			n++
		}
	}
	if n != *a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%s executed %d times", name, *a.Count),
			Actual:   fmt.Sprintf("executed %d times", n),
			Trace:    trace,
		}
	}
	return nil
}

// assertTraceOrder checks that the opcodes appear in the specified order.
// They need not be consecutive.
func assertTraceOrder(trace []engine.TraceEvent, a Assertion) error {
	i := 0
	for _, ev := range trace {
		if i < len(a.Ops) && ev.Name == opName(a.Ops[i]) {
			i++
		}
	}
	if i == len(a.Ops) {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceOrder,
		Expected: fmt.Sprintf("opcodes in order %v", a.Ops),
		Actual:   fmt.Sprintf("matched %d of %d, missing %q", i, len(a.Ops), a.Ops[i]),
		Trace:    trace,
	}
}
