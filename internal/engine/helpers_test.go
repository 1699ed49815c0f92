package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/evscript/internal/expr"
	"github.com/roach88/evscript/internal/ir"
	"github.com/roach88/evscript/internal/store"
	"github.com/roach88/evscript/internal/testutil"
)

var (
	_ MessageQueue = (*testutil.MessageQueue)(nil)
	_ MapAPI       = (*testutil.MapAPI)(nil)
	_ BattleState  = (*testutil.Battle)(nil)
	_ Store        = (*store.Memory)(nil)
	_ Store        = (*store.Store)(nil)
	_ Evaluator    = (*expr.CUE)(nil)
	_ Library      = (*ir.ScriptSet)(nil)
)

// fixture wires an Env of test doubles and records every trace event.
type fixture struct {
	msgs   *testutil.MessageQueue
	maps   *testutil.MapAPI
	battle *testutil.Battle
	store  *store.Memory
	lib    *ir.ScriptSet
	trace  []TraceEvent
}

func newFixture() *fixture {
	return &fixture{
		msgs:   testutil.NewAutoMessageQueue(),
		maps:   testutil.NewMapAPI(),
		battle: &testutil.Battle{},
		store:  store.NewMemory(),
		lib:    ir.NewScriptSet(),
	}
}

func (f *fixture) env() Env {
	return Env{
		Messages: f.msgs,
		Map:      f.maps,
		Battle:   f.battle,
		Store:    f.store,
		Library:  f.lib,
	}
}

func (f *fixture) options(extra ...Option) []Option {
	opts := []Option{
		WithLogger(discardLogger()),
		WithHandleGenerator(NewSequenceGenerator("h")),
		WithObserver(func(ev TraceEvent) { f.trace = append(f.trace, ev) }),
	}
	return append(opts, extra...)
}

func (f *fixture) interpreter(list *ir.CommandList, origin ir.Origin, extra ...Option) *Interpreter {
	return NewInterpreter(list, origin, f.env(), f.options(extra...)...)
}

func (f *fixture) scheduler(extra ...Option) *Scheduler {
	return New(f.env(), f.options(extra...)...)
}

// library registers a shared script for call_common.
func (f *fixture) library(t *testing.T, l *ir.CommandList) {
	t.Helper()
	require.NoError(t, f.lib.Add(&ir.Script{List: l}))
}

func (f *fixture) variable(t *testing.T, id int) ir.Value {
	t.Helper()
	v, err := f.store.Get(context.Background(), store.VariableKey(id))
	require.NoError(t, err)
	return v
}

func (f *fixture) setVariable(t *testing.T, id int, v ir.Value) {
	t.Helper()
	require.NoError(t, f.store.Set(context.Background(), store.VariableKey(id), v))
}

func (f *fixture) switchOn(t *testing.T, id int) bool {
	t.Helper()
	v, err := f.store.Get(context.Background(), store.SwitchKey(id))
	require.NoError(t, err)
	return ir.Truthy(v)
}

func (f *fixture) setSwitch(t *testing.T, id int, on bool) {
	t.Helper()
	require.NoError(t, f.store.Set(context.Background(), store.SwitchKey(id), ir.Bool(on)))
}

// pcs returns the program counter of every traced command of script id.
func (f *fixture) pcs(script int) []int {
	var out []int
	for _, ev := range f.trace {
		if ev.Script == script {
			out = append(out, ev.PC)
		}
	}
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// cmd builds a command; params are converted with ir.FromAny.
func cmd(op ir.Opcode, indent int, params ...any) ir.Command {
	ps := make(ir.Params, len(params))
	for i, p := range params {
		v, err := ir.FromAny(p)
		if err != nil {
			panic(err)
		}
		ps[i] = v
	}
	return ir.Command{Opcode: op, Indent: indent, Params: ps}
}

func list(id int, cmds ...ir.Command) *ir.CommandList {
	return ir.NewCommandList(id, "", cmds)
}

// Authoring shorthands.

func setVar(indent, id int, value any) ir.Command {
	return cmd(ir.OpSetVariable, indent, id, id, varSet, operandConstant, value)
}

func addVar(indent, id int, value any) ir.Command {
	return cmd(ir.OpSetVariable, indent, id, id, varAdd, operandConstant, value)
}

func setSwitch(indent, id int, on bool) ir.Command {
	v := 1
	if on {
		v = 0
	}
	return cmd(ir.OpSetSwitch, indent, id, id, v)
}

func ifSwitch(indent, id int, on bool) ir.Command {
	v := 1
	if on {
		v = 0
	}
	return cmd(ir.OpConditional, indent, condSwitch, id, v)
}

func ifVar(indent, id int, value any, op int) ir.Command {
	return cmd(ir.OpConditional, indent, condVariable, id, 0, value, op)
}

func message(indent int, text string) ir.Command {
	return cmd(ir.OpShowMessage, indent, text)
}

// tickUntilDone ticks in until it terminates, failing after limit ticks.
// It returns the number of ticks used.
func tickUntilDone(t *testing.T, in *Interpreter, limit int) int {
	t.Helper()
	ctx := context.Background()
	for i := 1; i <= limit; i++ {
		in.Tick(ctx, DefaultForegroundBudget)
		if in.Terminated() {
			return i
		}
	}
	t.Fatalf("interpreter still running after %d ticks (pc %d, state %s)", limit, in.PC(), in.State())
	return 0
}

func tickN(in *Interpreter, n int) {
	ctx := context.Background()
	for i := 0; i < n; i++ {
		in.Tick(ctx, DefaultForegroundBudget)
	}
}

// diagnosticsWith returns the diagnostics whose error has code.
func diagnosticsWith(diags []Diagnostic, code RuntimeErrorCode) []Diagnostic {
	var out []Diagnostic
	for _, d := range diags {
		if d.Err != nil && d.Err.Code == code {
			out = append(out, d)
		}
	}
	return out
}
