package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/roach88/evscript/internal/compiler"
	"github.com/roach88/evscript/internal/engine"
	"github.com/roach88/evscript/internal/ir"
	"github.com/roach88/evscript/internal/store"
	"github.com/roach88/evscript/internal/testutil"
)

// HandlePrefix prefixes the deterministic interpreter handles of a run:
// the first trigger gets "h-1", the second "h-2", and so on.
const HandlePrefix = "h"

// Harness is the scenario execution engine. Each run gets a fresh store,
// message queue, map and scheduler, with sequential handles so traces are
// reproducible.
type Harness struct {
	logger   *slog.Logger
	newStore func() (engine.Store, func() error, error)
	validate bool
}

// Option configures a Harness.
type Option func(*Harness)

// WithLogger sets the logger handed to the scheduler.
// Default: logs are discarded.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = l
	}
}

// WithStore makes every run use a store from open. The returned close
// function is called when the run ends.
// Default: a fresh store.Memory per run.
func WithStore(open func() (engine.Store, func() error, error)) Option {
	return func(h *Harness) {
		h.newStore = open
	}
}

// WithValidation runs the structural validator over the loaded scripts and
// refuses to run a scenario whose scripts have errors.
func WithValidation() Option {
	return func(h *Harness) {
		h.validate = true
	}
}

// New creates a Harness.
func New(opts ...Option) *Harness {
	h := &Harness{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		newStore: func() (engine.Store, func() error, error) {
			return store.NewMemory(), func() error { return nil }, nil
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run executes a scenario with a default Harness.
func Run(scenario *Scenario) (*Result, error) {
	return New().Run(context.Background(), scenario)
}

// Run executes a test scenario and returns the result.
//
// Execution flow:
//  1. Load scripts and seed a fresh store
//  2. Fire every trigger whose frame has come, then tick one frame
//  3. Stop when all triggers have fired and nothing is live, or at the
//     frame cap
//  4. Evaluate assertions against the result
//
// An error is returned only when the scenario cannot be run; failed
// assertions are reported through Result.
func (h *Harness) Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	lib, err := h.loadScripts(scenario)
	if err != nil {
		return nil, err
	}

	st, closeStore, err := h.newStore()
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	defer closeStore()

	if err := seed(ctx, st, scenario.State); err != nil {
		return nil, fmt.Errorf("failed to seed state: %w", err)
	}

	msgs := testutil.NewAutoMessageQueue()
	msgs.Choose(scenario.Choices...)
	maps := testutil.NewMapAPI()
	battle := &testutil.Battle{Forced: scenario.BattleForced}

	result := NewResult()
	sched := engine.New(engine.Env{
		Messages: msgs,
		Map:      maps,
		Battle:   battle,
		Store:    st,
		Library:  lib,
	},
		engine.WithLogger(h.logger),
		engine.WithHandleGenerator(engine.NewSequenceGenerator(HandlePrefix)),
		engine.WithForegroundBudget(scenario.Engine.ForegroundBudget),
		engine.WithBackgroundBudget(scenario.Engine.BackgroundBudget),
		engine.WithMaxCallDepth(maxCallDepth(scenario.Engine.MaxCallDepth)),
		engine.WithObserver(func(ev engine.TraceEvent) {
			result.Trace = append(result.Trace, ev)
		}),
	)

	steps, err := resolveTriggers(scenario.Triggers, lib)
	if err != nil {
		return nil, err
	}

	maxFrames := scenario.Frames
	if maxFrames == 0 {
		maxFrames = DefaultMaxFrames
	}

	next := 0
	for sched.Frame() < maxFrames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for next < len(steps) && steps[next].frame <= sched.Frame() {
			s := steps[next]
			if _, err := sched.Trigger(s.list, s.kind, s.origin); err != nil {
				return nil, fmt.Errorf("trigger script %d: %w", s.list.ID, err)
			}
			next++
		}
		if next == len(steps) && sched.Idle() {
			break
		}
		sched.Tick(ctx)
	}

	result.Messages = append(result.Messages, msgs.Texts()...)
	result.Mutations = append(result.Mutations, maps.Kinds()...)
	result.Diagnostics = sched.Diagnostics()
	result.Frames = sched.Frame()
	result.Idle = sched.Idle()

	state, err := dump(ctx, st)
	if err != nil {
		return nil, fmt.Errorf("failed to read final state: %w", err)
	}
	result.State = state

	actx := &AssertionContext{Store: st, Ctx: ctx}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

// maxCallDepth keeps the engine default when the scenario leaves it unset.
func maxCallDepth(n int) int {
	if n <= 0 {
		return engine.DefaultMaxCallDepth
	}
	return n
}

func (h *Harness) loadScripts(scenario *Scenario) (*ir.ScriptSet, error) {
	file := ir.ScriptFile{Scripts: scenario.Scripts}
	lib, err := file.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build inline scripts: %w", err)
	}

	paths := make([]string, len(scenario.Files))
	for i, f := range scenario.Files {
		paths[i] = scenario.resolve(f)
	}
	if len(paths) > 0 {
		loaded, err := compiler.LoadPaths(paths...)
		if err != nil {
			return nil, fmt.Errorf("failed to load script files: %w", err)
		}
		if err := lib.Merge(loaded); err != nil {
			return nil, fmt.Errorf("failed to merge script files: %w", err)
		}
	}

	if h.validate {
		if errs := compiler.Validate(lib); len(errs) > 0 {
			return nil, fmt.Errorf("scripts failed validation: %w", errs[0])
		}
	}
	return lib, nil
}

type triggerStep struct {
	frame  int64
	list   *ir.CommandList
	kind   ir.TriggerKind
	origin ir.Origin
}

// resolveTriggers looks up each trigger's script and orders the steps by
// frame, keeping authored order within a frame.
func resolveTriggers(triggers []TriggerStep, lib *ir.ScriptSet) ([]triggerStep, error) {
	steps := make([]triggerStep, 0, len(triggers))
	for i, t := range triggers {
		sc, ok := lib.Get(t.Script)
		if !ok {
			return nil, fmt.Errorf("triggers[%d]: script %d not found", i, t.Script)
		}
		kind := sc.Trigger
		if t.Kind != "" {
			kind = ir.TriggerKind(t.Kind)
		}
		if kind == ir.TriggerNone {
			return nil, fmt.Errorf("triggers[%d]: script %d has no trigger kind", i, t.Script)
		}
		origin := sc.Origin
		if t.Origin != nil {
			origin = *t.Origin
		}
		steps = append(steps, triggerStep{frame: t.Frame, list: sc.List, kind: kind, origin: origin})
	}
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].frame < steps[j].frame })
	return steps, nil
}

// seed writes the initial state.
func seed(ctx context.Context, st engine.Store, state InitialState) error {
	for id, on := range state.Switches {
		if err := st.Set(ctx, store.SwitchKey(id), ir.Bool(on)); err != nil {
			return err
		}
	}
	for id, raw := range state.Variables {
		v, err := ir.FromAny(raw)
		if err != nil {
			return fmt.Errorf("variable %d: %w", id, err)
		}
		if err := st.Set(ctx, store.VariableKey(id), v); err != nil {
			return err
		}
	}
	for _, s := range state.SelfSwitches {
		origin := ir.Origin{MapID: s.Map, EventID: s.Event}
		if err := st.Set(ctx, store.SelfKey(origin, s.Name), ir.Bool(s.Value)); err != nil {
			return err
		}
	}
	return nil
}

// dumper is implemented by stores that can list their contents.
type dumper interface {
	Dump(ctx context.Context) ([]store.Entry, error)
}

func dump(ctx context.Context, st engine.Store) ([]store.Entry, error) {
	d, ok := st.(dumper)
	if !ok {
		return nil, nil
	}
	return d.Dump(ctx)
}
