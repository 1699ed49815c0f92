package engine

import (
	"log/slog"

	"github.com/roach88/evscript/internal/ir"
)

const (
	// DefaultForegroundBudget is the per-frame command budget of the
	// foreground slot.
	DefaultForegroundBudget = 1000

	// DefaultBackgroundBudget is the per-frame command budget of each
	// background interpreter.
	DefaultBackgroundBudget = 100

	// DefaultMaxCallDepth caps nested call_common children.
	DefaultMaxCallDepth = 16
)

// TraceEvent describes one executed command.
type TraceEvent struct {
	Frame   int64     `json:"frame"`
	Handle  string    `json:"handle"`
	Depth   int       `json:"depth"`
	Script  int       `json:"script"`
	PC      int       `json:"pc"`
	Opcode  ir.Opcode `json:"opcode"`
	Name    string    `json:"name"`
	Outcome string    `json:"outcome"`
}

// Observer receives a TraceEvent after every command, in execution order.
type Observer func(TraceEvent)

type options struct {
	foregroundBudget int
	backgroundBudget int
	maxCallDepth     int
	diagnosticsCap   int
	logger           *slog.Logger
	handles          HandleGenerator
	observer         Observer
	dispatch         *Dispatch
	clock            *FrameClock
}

// Option configures a Scheduler or a standalone Interpreter.
type Option func(*options)

func defaultOptions() options {
	return options{
		foregroundBudget: DefaultForegroundBudget,
		backgroundBudget: DefaultBackgroundBudget,
		maxCallDepth:     DefaultMaxCallDepth,
		diagnosticsCap:   DefaultDiagnosticsCapacity,
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.handles == nil {
		o.handles = UUIDv7Generator{}
	}
	if o.dispatch == nil {
		o.dispatch = DefaultDispatch()
	}
	if o.clock == nil {
		o.clock = NewFrameClock()
	}
	return o
}

// WithForegroundBudget sets the foreground per-frame command budget.
//
// Default: 1000 commands (DefaultForegroundBudget)
func WithForegroundBudget(n int) Option {
	return func(o *options) {
		o.foregroundBudget = n
	}
}

// WithBackgroundBudget sets the per-instance background command budget.
//
// Default: 100 commands (DefaultBackgroundBudget)
func WithBackgroundBudget(n int) Option {
	return func(o *options) {
		o.backgroundBudget = n
	}
}

// WithMaxCallDepth sets the call_common depth cap.
//
// Default: 16 (DefaultMaxCallDepth)
// Use WithMaxCallDepth(1) to forbid nested calls.
func WithMaxCallDepth(n int) Option {
	return func(o *options) {
		o.maxCallDepth = n
	}
}

// WithDiagnosticsCapacity sets how many diagnostics are retained.
func WithDiagnosticsCapacity(n int) Option {
	return func(o *options) {
		o.diagnosticsCap = n
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithHandleGenerator sets the interpreter handle generator.
// Default: UUIDv7Generator.
func WithHandleGenerator(g HandleGenerator) Option {
	return func(o *options) {
		o.handles = g
	}
}

// WithObserver installs a trace observer.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		o.observer = obs
	}
}

// WithDispatch replaces the default dispatch table. The table is frozen
// when the scheduler is built.
func WithDispatch(d *Dispatch) Option {
	return func(o *options) {
		o.dispatch = d
	}
}

// WithFrameClock sets the frame clock, e.g. to resume a frame count.
func WithFrameClock(c *FrameClock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// runtime is the state shared by every interpreter of one scheduler.
type runtime struct {
	env          Env
	dispatch     *Dispatch
	logger       *slog.Logger
	maxCallDepth int
	observer     Observer
	clock        *FrameClock
	diags        *diagnosticRing
}

func newRuntime(env Env, o options) *runtime {
	o.dispatch.Freeze()
	return &runtime{
		env:          env.withDefaults(),
		dispatch:     o.dispatch,
		logger:       o.logger,
		maxCallDepth: o.maxCallDepth,
		observer:     o.observer,
		clock:        o.clock,
		diags:        newDiagnosticRing(o.diagnosticsCap),
	}
}
