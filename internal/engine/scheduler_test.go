package engine

import (
	"context"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/evscript/internal/ir"
	"github.com/roach88/evscript/internal/store"
)

func trigger(t *testing.T, s *Scheduler, l *ir.CommandList, kind ir.TriggerKind, origin ir.Origin) string {
	t.Helper()
	h, err := s.Trigger(l, kind, origin)
	require.NoError(t, err)
	return h
}

func TestScheduler_BackgroundLastWriteWins(t *testing.T) {
	f := newFixture()
	s := f.scheduler()
	ctx := context.Background()

	trigger(t, s, list(1, setVar(0, 1, 1)), ir.TriggerParallel, ir.Origin{MapID: 1, EventID: 1})
	trigger(t, s, list(2, setVar(0, 1, 2)), ir.TriggerParallel, ir.Origin{MapID: 1, EventID: 2})
	trigger(t, s, list(3, setVar(0, 1, 3)), ir.TriggerParallel, ir.Origin{MapID: 1, EventID: 3})

	s.Tick(ctx)

	assert.Equal(t, ir.Int(3), f.variable(t, 1))
	require.Len(t, f.trace, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{f.trace[0].Script, f.trace[1].Script, f.trace[2].Script})
	assert.True(t, s.Idle())
}

func TestScheduler_ForegroundBeforeBackground(t *testing.T) {
	f := newFixture()
	s := f.scheduler()

	trigger(t, s, list(1, setVar(0, 1, 1)), ir.TriggerParallel, ir.Origin{})
	trigger(t, s, list(2, setVar(0, 1, 2)), ir.TriggerAction, ir.Origin{})

	s.Tick(context.Background())

	assert.Equal(t, ir.Int(1), f.variable(t, 1), "background write lands last")
	require.Len(t, f.trace, 2)
	assert.Equal(t, 2, f.trace[0].Script)
}

func TestScheduler_WritesVisibleWithinFrame(t *testing.T) {
	f := newFixture()
	s := f.scheduler()

	trigger(t, s, list(1, setSwitch(0, 1, true)), ir.TriggerParallel, ir.Origin{})
	trigger(t, s, list(2,
		ifSwitch(0, 1, true),
		setVar(1, 1, 1),
		cmd(ir.OpBranchEnd, 0),
	), ir.TriggerParallel, ir.Origin{})

	s.Tick(context.Background())
	assert.Equal(t, ir.Int(1), f.variable(t, 1))
}

func TestScheduler_ForegroundQueue(t *testing.T) {
	f := newFixture()
	s := f.scheduler()
	ctx := context.Background()

	first := trigger(t, s, list(1,
		cmd(ir.OpWait, 0, 2),
		setVar(0, 1, 1),
	), ir.TriggerTouch, ir.Origin{})
	second := trigger(t, s, list(2, setVar(0, 2, 1)), ir.TriggerAutorun, ir.Origin{})

	require.NotNil(t, s.Foreground())
	assert.Equal(t, first, s.Foreground().Handle())
	assert.Equal(t, 1, s.Pending())

	for i := 0; i < 4; i++ {
		s.Tick(ctx)
	}
	assert.Equal(t, ir.Int(1), f.variable(t, 1))
	assert.Equal(t, ir.Int(0), f.variable(t, 2), "second waits for the slot")
	assert.Nil(t, s.Foreground())

	s.Tick(ctx)
	assert.Equal(t, ir.Int(1), f.variable(t, 2))
	_, ok := s.Lookup(second)
	assert.False(t, ok)
	assert.Equal(t, 0, s.Pending())
}

func TestScheduler_ForegroundBudget(t *testing.T) {
	f := newFixture()
	s := f.scheduler(WithForegroundBudget(4), WithBackgroundBudget(2))
	loop := func(id, v int) *ir.CommandList {
		return list(id,
			cmd(ir.OpLoop, 0),
			addVar(1, v, 1),
			cmd(ir.OpRepeatAbove, 0),
		)
	}

	trigger(t, s, loop(1, 1), ir.TriggerAction, ir.Origin{})
	trigger(t, s, loop(2, 2), ir.TriggerParallel, ir.Origin{})

	s.Tick(context.Background())

	assert.Equal(t, ir.Int(2), f.variable(t, 1), "loop, add, repeat, add")
	assert.Equal(t, ir.Int(1), f.variable(t, 2), "loop, add")
}

func TestScheduler_NonPositiveBudgetsUseDefaults(t *testing.T) {
	s := New(Env{}, WithForegroundBudget(0), WithBackgroundBudget(-1), WithLogger(discardLogger()))
	assert.Equal(t, DefaultForegroundBudget, s.foregroundBudget)
	assert.Equal(t, DefaultBackgroundBudget, s.backgroundBudget)
}

func TestScheduler_Teardown(t *testing.T) {
	f := newFixture()
	s := f.scheduler()
	ctx := context.Background()
	waiting := func(id int) *ir.CommandList { return list(id, cmd(ir.OpWait, 0, 100)) }

	trigger(t, s, waiting(1), ir.TriggerParallel, ir.Origin{MapID: 1, EventID: 1})
	trigger(t, s, waiting(2), ir.TriggerParallel, ir.Origin{MapID: 1, EventID: 2})
	trigger(t, s, waiting(3), ir.TriggerParallel, ir.Origin{MapID: 2, EventID: 1})
	trigger(t, s, waiting(4), ir.TriggerTouch, ir.Origin{MapID: 1, EventID: 3})
	s.Tick(ctx)

	assert.Equal(t, 3, s.Teardown(1))

	running := s.Running()
	require.Len(t, running, 1)
	assert.Equal(t, 3, running[0].List().ID)
	assert.Nil(t, s.Foreground())
	assert.Equal(t, 0, s.Teardown(9))
}

func TestScheduler_Terminate(t *testing.T) {
	f := newFixture()
	s := f.scheduler()
	ctx := context.Background()

	h := trigger(t, s, list(1,
		cmd(ir.OpWait, 0, 5),
		setVar(0, 1, 1),
	), ir.TriggerParallel, ir.Origin{})
	s.Tick(ctx)

	in, ok := s.Lookup(h)
	require.True(t, ok)
	assert.Equal(t, StateWaiting, in.State())

	assert.True(t, s.Terminate(h))
	assert.False(t, s.Terminate("nope"))

	s.Tick(ctx)
	_, ok = s.Lookup(h)
	assert.False(t, ok)
	assert.Empty(t, s.Background())

	for i := 0; i < 10; i++ {
		s.Tick(ctx)
	}
	assert.Equal(t, ir.Int(0), f.variable(t, 1))
}

func TestScheduler_TerminatedPendingIsSkipped(t *testing.T) {
	f := newFixture()
	s := f.scheduler()
	ctx := context.Background()

	trigger(t, s, list(1, cmd(ir.OpWait, 0, 1)), ir.TriggerTouch, ir.Origin{})
	queued := trigger(t, s, list(2, setVar(0, 1, 1)), ir.TriggerTouch, ir.Origin{})
	trigger(t, s, list(3, setVar(0, 2, 1)), ir.TriggerTouch, ir.Origin{})

	require.True(t, s.Terminate(queued))
	for i := 0; i < 5; i++ {
		s.Tick(ctx)
	}

	assert.Equal(t, ir.Int(0), f.variable(t, 1))
	assert.Equal(t, ir.Int(1), f.variable(t, 2))
	assert.True(t, s.Idle())
}

func TestScheduler_InvalidTriggers(t *testing.T) {
	s := newFixture().scheduler()

	_, err := s.Trigger(nil, ir.TriggerTouch, ir.Origin{})
	require.Error(t, err)
	assert.True(t, IsSchedulerFatal(err))

	_, err = s.Trigger(list(1), ir.TriggerNone, ir.Origin{})
	assert.Error(t, err)

	_, err = s.Trigger(list(1), ir.TriggerKind("bogus"), ir.Origin{})
	assert.Error(t, err)

	assert.True(t, s.Idle())
}

func TestScheduler_DuplicateHandle(t *testing.T) {
	s := newFixture().scheduler(WithHandleGenerator(NewFixedGenerator("dup", "dup")))

	_, err := s.Trigger(list(1), ir.TriggerParallel, ir.Origin{})
	require.NoError(t, err)
	_, err = s.Trigger(list(2), ir.TriggerParallel, ir.Origin{})
	assert.Error(t, err)
	assert.Len(t, s.Background(), 1)
}

func TestScheduler_TriggerMidFrameStartsNextFrame(t *testing.T) {
	f := newFixture()
	d := DefaultDispatch()
	var s *Scheduler
	require.NoError(t, d.RegisterExtension(1100, "spawn", func(context.Context, *Interpreter, ir.Command) Outcome {
		_, err := s.Trigger(list(9, setVar(0, 9, 1)), ir.TriggerParallel, ir.Origin{})
		require.NoError(t, err)
		return Continue()
	}))
	s = f.scheduler(WithDispatch(d))
	ctx := context.Background()

	trigger(t, s, list(1, cmd(ir.Opcode(1100), 0)), ir.TriggerParallel, ir.Origin{})

	s.Tick(ctx)
	assert.Equal(t, ir.Int(0), f.variable(t, 9))
	require.Len(t, s.Background(), 1)

	s.Tick(ctx)
	assert.Equal(t, ir.Int(1), f.variable(t, 9))
}

func TestScheduler_FrameAndTrace(t *testing.T) {
	f := newFixture()
	s := f.scheduler()
	ctx := context.Background()

	h := trigger(t, s, list(1,
		setVar(0, 1, 1),
		cmd(ir.OpWait, 0, 1),
		setVar(0, 1, 2),
	), ir.TriggerAction, ir.Origin{})
	assert.Equal(t, "h-1", h)
	assert.Equal(t, int64(0), s.Frame())

	for i := 0; i < 4; i++ {
		s.Tick(ctx)
	}

	assert.Equal(t, int64(4), s.Frame())
	require.Len(t, f.trace, 3)
	assert.Equal(t, []int64{1, 1, 3}, []int64{f.trace[0].Frame, f.trace[1].Frame, f.trace[2].Frame})
	for _, ev := range f.trace {
		assert.Equal(t, h, ev.Handle)
	}
}

func TestScheduler_ResumedFrameClock(t *testing.T) {
	f := newFixture()
	s := f.scheduler(WithFrameClock(NewFrameClockAt(40)))
	assert.Equal(t, int64(40), s.Frame())

	s.Tick(context.Background())
	assert.Equal(t, int64(41), s.Frame())
}

func TestScheduler_Diagnostics(t *testing.T) {
	f := newFixture()
	s := f.scheduler()

	trigger(t, s, list(1, cmd(ir.Opcode(777), 0)), ir.TriggerParallel, ir.Origin{})
	s.Tick(context.Background())

	diags := s.Diagnostics()
	require.Len(t, diags, 1)
	assert.Equal(t, int64(1), diags[0].Frame)
	assert.True(t, IsUnknownOpcode(diags[0].Err))
}

func TestScheduler_DefaultEnv(t *testing.T) {
	s := New(Env{}, WithLogger(discardLogger()))
	env := s.Env()

	assert.NotNil(t, env.Messages)
	assert.NotNil(t, env.Map)
	assert.NotNil(t, env.Battle)
	assert.NotNil(t, env.Store)
	assert.NotNil(t, env.Eval)
	assert.NotNil(t, env.Library)

	trigger(t, s, list(1,
		message(0, "hi"),
		cmd(ir.OpEvaluate, 0, "1 + 1", 1),
	), ir.TriggerAction, ir.Origin{})
	for i := 0; i < 3; i++ {
		s.Tick(context.Background())
	}
	assert.True(t, s.Idle())
	assert.Empty(t, s.Diagnostics())
}

// TestScheduler_BackgroundOrderProperty checks that n parallel scripts each
// writing their creation index leave the last index behind after one frame.
func TestScheduler_BackgroundOrderProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("last created background write wins", prop.ForAll(
		func(n int) bool {
			f := newFixture()
			s := f.scheduler()
			for i := 1; i <= n; i++ {
				if _, err := s.Trigger(list(i, setVar(0, 1, i)), ir.TriggerParallel, ir.Origin{}); err != nil {
					return false
				}
			}
			s.Tick(context.Background())

			v, err := f.store.Get(context.Background(), store.VariableKey(1))
			if err != nil || v != ir.Int(int64(n)) {
				return false
			}
			for i, ev := range f.trace {
				if ev.Script != i+1 {
					return false
				}
			}
			return len(f.trace) == n
		},
		gen.IntRange(1, 16),
	))

	properties.TestingRun(t)
}
