package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/evscript/internal/ir"
)

const minimalScenario = `
name: minimal
description: "one script"
scripts:
  - id: 1
    trigger: action
    commands:
      - {op: set_switch, params: [1, 1, 0]}
triggers:
  - script: 1
assertions:
  - type: switch
    id: 1
    value: true
`

func TestParseScenario(t *testing.T) {
	s, err := ParseScenario([]byte(minimalScenario))
	require.NoError(t, err)

	assert.Equal(t, "minimal", s.Name)
	require.Len(t, s.Scripts, 1)
	assert.Equal(t, 1, s.Scripts[0].ID)
	assert.Equal(t, "action", s.Scripts[0].Trigger)
	require.Len(t, s.Triggers, 1)
	assert.Equal(t, int64(0), s.Triggers[0].Frame)
	require.Len(t, s.Assertions, 1)
	assert.Equal(t, AssertSwitch, s.Assertions[0].Type)
	assert.Equal(t, true, s.Assertions[0].Value)
}

func TestParseScenario_FullFields(t *testing.T) {
	src := `
name: full
description: "every field"
files: [a.cue]
engine:
  foreground_budget: 5
  background_budget: 2
  max_call_depth: 3
state:
  switches: {1: true}
  variables: {2: 10, 3: "text"}
  self_switches:
    - {map: 1, event: 2, name: A, value: true}
choices: [1, -2]
battle_forced: true
triggers:
  - script: 1
    kind: parallel
    frame: 4
    origin: {map: 1, event: 2}
frames: 50
assertions:
  - type: idle
`
	s, err := ParseScenario([]byte(src))
	require.NoError(t, err)

	assert.Equal(t, []string{"a.cue"}, s.Files)
	assert.Equal(t, EngineSettings{ForegroundBudget: 5, BackgroundBudget: 2, MaxCallDepth: 3}, s.Engine)
	assert.Equal(t, map[int]bool{1: true}, s.State.Switches)
	assert.Equal(t, 10, s.State.Variables[2])
	assert.Equal(t, "text", s.State.Variables[3])
	assert.Equal(t, []SelfSwitchSeed{{Map: 1, Event: 2, Name: "A", Value: true}}, s.State.SelfSwitches)
	assert.Equal(t, []int{1, -2}, s.Choices)
	assert.True(t, s.BattleForced)
	assert.Equal(t, int64(50), s.Frames)

	step := s.Triggers[0]
	assert.Equal(t, "parallel", step.Kind)
	assert.Equal(t, int64(4), step.Frame)
	require.NotNil(t, step.Origin)
	assert.Equal(t, ir.Origin{MapID: 1, EventID: 2}, *step.Origin)
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr string
	}{
		{
			name:    "unknown field",
			src:     "name: x\ndescription: y\nassertion: []\n",
			wantErr: "field assertion not found",
		},
		{
			name:    "missing name",
			src:     "description: y\nscripts: [{id: 1, commands: []}]\ntriggers: [{script: 1}]\nassertions: [{type: idle}]\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			src:     "name: x\nscripts: [{id: 1, commands: []}]\ntriggers: [{script: 1}]\nassertions: [{type: idle}]\n",
			wantErr: "description is required",
		},
		{
			name:    "no scripts",
			src:     "name: x\ndescription: y\ntriggers: [{script: 1}]\nassertions: [{type: idle}]\n",
			wantErr: "scripts or files is required",
		},
		{
			name:    "no triggers",
			src:     "name: x\ndescription: y\nscripts: [{id: 1, commands: []}]\nassertions: [{type: idle}]\n",
			wantErr: "triggers list is required",
		},
		{
			name:    "no assertions",
			src:     "name: x\ndescription: y\nscripts: [{id: 1, commands: []}]\ntriggers: [{script: 1}]\n",
			wantErr: "assertions list is required",
		},
		{
			name:    "negative frames",
			src:     "name: x\ndescription: y\nscripts: [{id: 1, commands: []}]\ntriggers: [{script: 1}]\nframes: -1\nassertions: [{type: idle}]\n",
			wantErr: "frames must be non-negative",
		},
		{
			name:    "bad trigger kind",
			src:     "name: x\ndescription: y\nscripts: [{id: 1, commands: []}]\ntriggers: [{script: 1, kind: sometimes}]\nassertions: [{type: idle}]\n",
			wantErr: `unknown kind "sometimes"`,
		},
		{
			name:    "unknown assertion",
			src:     "name: x\ndescription: y\nscripts: [{id: 1, commands: []}]\ntriggers: [{script: 1}]\nassertions: [{type: vibes}]\n",
			wantErr: `unknown type "vibes"`,
		},
		{
			name:    "variable without value",
			src:     "name: x\ndescription: y\nscripts: [{id: 1, commands: []}]\ntriggers: [{script: 1}]\nassertions: [{type: variable, id: 1}]\n",
			wantErr: "requires a positive id and a value",
		},
		{
			name:    "trace_count without count",
			src:     "name: x\ndescription: y\nscripts: [{id: 1, commands: []}]\ntriggers: [{script: 1}]\nassertions: [{type: trace_count, op: wait}]\n",
			wantErr: "trace_count requires op and count",
		},
		{
			name:    "self switch seed without name",
			src:     "name: x\ndescription: y\nscripts: [{id: 1, commands: []}]\nstate: {self_switches: [{map: 1, event: 1}]}\ntriggers: [{script: 1}]\nassertions: [{type: idle}]\n",
			wantErr: "state.self_switches[0]: name is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_ResolvesFilesRelativeToScenario(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "scripts"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scripts", "a.yaml"),
		[]byte("scripts: [{id: 1, trigger: action, commands: []}]\n"), 0o644))
	path := filepath.Join(dir, "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: rel
description: "relative files"
files: [scripts/a.yaml]
triggers: [{script: 1}]
assertions: [{type: idle}]
`), 0o644))

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "scripts", "a.yaml"), s.resolve(s.Files[0]))
}

func TestLoadScenario_MissingScriptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: missing
description: "missing file"
files: [nope.cue]
triggers: [{script: 1}]
assertions: [{type: idle}]
`), 0o644))

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "script file not found: nope.cue")
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}
