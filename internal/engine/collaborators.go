package engine

import (
	"context"

	"github.com/roach88/evscript/internal/expr"
	"github.com/roach88/evscript/internal/ir"
	"github.com/roach88/evscript/internal/store"
)

// MessageQueue displays text and choice sets.
type MessageQueue interface {
	Enqueue(msg ir.Message) ir.MessageHandle
	IsIdle() bool
}

// MapAPI applies map mutations and reports the progress of the effects they
// start.
type MapAPI interface {
	Apply(ctx context.Context, m ir.Mutation) error
	Transferring() bool
	Moving(target int) bool
	Animating(target int) bool
}

// BattleState is the narrow read capability into the battle system.
type BattleState interface {
	ActionForced() bool
}

// Store is the Persistent Store holding switches, variables and self
// switches. Implemented by store.Memory and store.Store.
type Store interface {
	Get(ctx context.Context, key store.Key) (ir.Value, error)
	Set(ctx context.Context, key store.Key, value ir.Value) error
	Snapshot(ctx context.Context, origin ir.Origin) (store.Snapshot, error)
}

// Evaluator evaluates sandboxed expressions. Implemented by expr.CUE.
type Evaluator interface {
	Evaluate(src string, scope expr.Scope) (ir.Value, error)
}

// Library resolves shared scripts for call_common.
// Implemented by ir.ScriptSet.
type Library interface {
	Script(id int) (*ir.CommandList, bool)
}

// Env bundles the collaborators every interpreter runs against. It is passed
// explicitly so separate schedulers never share state by accident.
type Env struct {
	Messages MessageQueue
	Map      MapAPI
	Battle   BattleState
	Store    Store
	Eval     Evaluator
	Library  Library
}

// withDefaults fills unset collaborators: an in-memory store, a CUE
// evaluator, an empty library and inert message/map/battle systems.
func (e Env) withDefaults() Env {
	if e.Messages == nil {
		e.Messages = nopMessages{}
	}
	if e.Map == nil {
		e.Map = nopMap{}
	}
	if e.Battle == nil {
		e.Battle = nopBattle{}
	}
	if e.Store == nil {
		e.Store = store.NewMemory()
	}
	if e.Eval == nil {
		e.Eval = expr.NewCUE()
	}
	if e.Library == nil {
		e.Library = ir.NewScriptSet()
	}
	return e
}

type nopMessages struct{}

func (nopMessages) Enqueue(ir.Message) ir.MessageHandle { return 0 }
func (nopMessages) IsIdle() bool                     { return true }

type nopMap struct{}

func (nopMap) Apply(context.Context, ir.Mutation) error { return nil }
func (nopMap) Transferring() bool                       { return false }
func (nopMap) Moving(int) bool                          { return false }
func (nopMap) Animating(int) bool                       { return false }

type nopBattle struct{}

func (nopBattle) ActionForced() bool { return false }
