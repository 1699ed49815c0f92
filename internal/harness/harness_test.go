package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/evscript/internal/engine"
	"github.com/roach88/evscript/internal/ir"
	"github.com/roach88/evscript/internal/store"
)

func parse(t *testing.T, src string) *Scenario {
	t.Helper()
	s, err := ParseScenario([]byte(src))
	require.NoError(t, err)
	return s
}

func TestRun_Minimal(t *testing.T) {
	result, err := Run(parse(t, minimalScenario))
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Errors)
	assert.True(t, result.Idle)
	assert.Equal(t, int64(1), result.Frames)
	require.Len(t, result.Trace, 1)
	assert.Equal(t, "h-1", result.Trace[0].Handle)
	assert.Equal(t, "set_switch", result.Trace[0].Name)
	assert.Equal(t, []store.Entry{{Key: store.SwitchKey(1), Value: ir.Bool(true)}}, result.State)
}

func TestRun_FailedAssertionsAreReported(t *testing.T) {
	s := parse(t, `
name: failing
description: "expects the wrong value"
scripts:
  - id: 1
    trigger: action
    commands:
      - {op: set_variable, params: [1, 1, 0, 0, 5]}
triggers: [{script: 1}]
assertions:
  - type: variable
    id: 1
    value: 6
  - type: messages
    texts: ["hello"]
`)
	result, err := Run(s)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "assertion 0 (variable)")
	assert.Contains(t, result.Errors[0], "variable[1] = 6")
	assert.Contains(t, result.Errors[0], "variable[1] = 5")
	assert.Contains(t, result.Errors[1], `["hello"]`)
}

func TestRun_FrameCap(t *testing.T) {
	s := parse(t, `
name: forever
description: "loops until the frame cap"
engine:
  foreground_budget: 3
scripts:
  - id: 1
    trigger: action
    commands:
      - {op: loop}
      - {op: set_variable, indent: 1, params: [1, 1, 1, 0, 1]}
      - {op: repeat_above}
triggers: [{script: 1}]
frames: 10
assertions:
  - type: idle
`)
	result, err := Run(s)
	require.NoError(t, err)

	assert.Equal(t, int64(10), result.Frames)
	assert.False(t, result.Idle)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "still running after 10 frames")
}

func TestRun_DelayedTrigger(t *testing.T) {
	s := parse(t, `
name: delayed
description: "second trigger fires on frame 4"
scripts:
  - id: 1
    trigger: parallel
    commands:
      - {op: set_variable, params: [1, 1, 1, 0, 1]}
triggers:
  - script: 1
    frame: 4
  - script: 1
assertions:
  - type: variable
    id: 1
    value: 2
`)
	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	require.Len(t, result.Trace, 2)
	assert.Equal(t, int64(1), result.Trace[0].Frame)
	assert.Equal(t, "h-1", result.Trace[0].Handle)
	assert.Equal(t, int64(5), result.Trace[1].Frame)
	assert.Equal(t, "h-2", result.Trace[1].Handle)
	assert.Equal(t, int64(5), result.Frames)
}

func TestRun_SeedsState(t *testing.T) {
	s := parse(t, `
name: seeded
description: "initial state is visible to scripts"
state:
  switches: {2: true}
  variables: {1: 40}
  self_switches:
    - {map: 3, event: 1, name: B, value: true}
scripts:
  - id: 1
    trigger: action
    origin: {map: 3, event: 1}
    commands:
      - {op: conditional_branch, params: [2, "B", 0]}
      - {op: set_variable, indent: 1, params: [1, 1, 1, 0, 2]}
      - {op: branch_end}
      - {op: conditional_branch, params: [0, 2, 0]}
      - {op: set_variable, indent: 1, params: [1, 1, 2, 0, 12]}
      - {op: branch_end}
triggers: [{script: 1}]
assertions:
  - type: variable
    id: 1
    value: 30
  - type: switch
    id: 2
    value: true
  - type: self_switch
    map: 3
    event: 1
    name: B
    value: true
`)
	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_EngineSettings(t *testing.T) {
	s := parse(t, `
name: depth
description: "call depth cap from the scenario"
engine:
  max_call_depth: 1
scripts:
  - id: 1
    trigger: action
    commands:
      - {op: call_common, params: [2]}
  - id: 2
    commands:
      - {op: call_common, params: [3]}
  - id: 3
    commands:
      - {op: set_switch, params: [9, 9, 0]}
triggers: [{script: 1}]
assertions:
  - type: switch
    id: 9
    value: false
  - type: diagnostic
    code: EXCESSIVE_CALL_DEPTH
    count: 1
`)
	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr string
	}{
		{
			name: "unknown script",
			src: `
name: x
description: y
scripts: [{id: 1, trigger: action, commands: []}]
triggers: [{script: 2}]
assertions: [{type: idle}]
`,
			wantErr: "triggers[0]: script 2 not found",
		},
		{
			name: "library script without kind",
			src: `
name: x
description: y
scripts: [{id: 1, commands: []}]
triggers: [{script: 1}]
assertions: [{type: idle}]
`,
			wantErr: "script 1 has no trigger kind",
		},
		{
			name: "bad inline script",
			src: `
name: x
description: y
scripts: [{id: 1, trigger: action, commands: [{op: dance}]}]
triggers: [{script: 1}]
assertions: [{type: idle}]
`,
			wantErr: "failed to build inline scripts",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Run(parse(t, tt.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRun_LibraryScriptWithKindOverride(t *testing.T) {
	s := parse(t, `
name: override
description: "a library script can be triggered with an explicit kind"
scripts: [{id: 1, commands: [{op: set_switch, params: [1, 1, 0]}]}]
triggers: [{script: 1, kind: autorun}]
assertions: [{type: switch, id: 1, value: true}]
`)
	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_WithValidation(t *testing.T) {
	s := parse(t, `
name: unbalanced
description: "branch never closed"
scripts:
  - id: 1
    trigger: action
    commands:
      - {op: conditional_branch, params: [0, 1, 0]}
      - {op: set_switch, indent: 1, params: [1, 1, 0]}
triggers: [{script: 1}]
assertions: [{type: idle}]
`)
	_, err := New(WithValidation()).Run(context.Background(), s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scripts failed validation")

	result, err := Run(s)
	require.NoError(t, err, "validation is opt-in")
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_WithSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	h := New(WithStore(func() (engine.Store, func() error, error) {
		st, err := store.Open(path)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	}))

	result, err := h.Run(context.Background(), parse(t, minimalScenario))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, []store.Entry{{Key: store.SwitchKey(1), Value: ir.Bool(true)}}, result.State)

	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()
	v, err := st.Get(context.Background(), store.SwitchKey(1))
	require.NoError(t, err)
	assert.Equal(t, ir.Bool(true), v, "state persisted after the run")
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Run(ctx, parse(t, minimalScenario))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_Deterministic(t *testing.T) {
	s := parse(t, minimalScenario)
	first, err := Run(s)
	require.NoError(t, err)
	second, err := Run(s)
	require.NoError(t, err)

	assert.Equal(t, first.Trace, second.Trace)
	assert.Equal(t, first.State, second.State)
}
