package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/evscript/internal/engine"
	"github.com/roach88/evscript/internal/ir"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, engine.DefaultForegroundBudget, cfg.Engine.ForegroundBudget)
	assert.Equal(t, engine.DefaultMaxCallDepth, cfg.Engine.MaxCallDepth)
	assert.Equal(t, HandlesUUID, cfg.Engine.Handles)
}

func TestParse_OverlaysDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
engine:
  foreground_budget: 500
  handles: sequence
run:
  frame_interval: 16ms
store:
  path: state.db
log:
  level: debug
  format: json
`))
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.Engine.ForegroundBudget)
	assert.Equal(t, engine.DefaultBackgroundBudget, cfg.Engine.BackgroundBudget, "absent field keeps default")
	assert.Equal(t, HandlesSequence, cfg.Engine.Handles)
	assert.Equal(t, 16*time.Millisecond, cfg.Run.FrameInterval)
	assert.Equal(t, int64(10000), cfg.Run.MaxFrames)
	assert.Equal(t, "state.db", cfg.Store.Path)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse_UnknownField(t *testing.T) {
	_, err := Parse([]byte("engine:\n  foreground_budgt: 5\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "foreground_budgt")
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"zero foreground budget", "engine: {foreground_budget: 0}", "engine.foreground_budget"},
		{"negative background budget", "engine: {background_budget: -1}", "engine.background_budget"},
		{"negative call depth", "engine: {max_call_depth: -2}", "engine.max_call_depth"},
		{"bad handles", "engine: {handles: random}", "engine.handles"},
		{"negative frames", "run: {max_frames: -1}", "run.max_frames"},
		{"bad level", "log: {level: loud}", "log.level"},
		{"bad format", "log: {format: xml}", "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	cfg := Default()
	cfg.Engine.ForegroundBudget = 0
	cfg.Log.Format = "xml"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine.foreground_budget")
	assert.Contains(t, err.Error(), "log.format")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evscript.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine:\n  max_call_depth: 4\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Engine.MaxCallDepth)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestOptions_ApplyToScheduler(t *testing.T) {
	cfg := Default()
	cfg.Engine.Handles = HandlesSequence
	cfg.Engine.ForegroundBudget = 2
	cfg.Log.Level = "debug"

	var buf bytes.Buffer
	s := engine.New(engine.Env{}, cfg.Options(cfg.Logger(&buf))...)

	l := ir.NewCommandList(1, "", []ir.Command{
		{Opcode: ir.OpLoop},
		{Opcode: ir.OpRepeatAbove},
	})
	h, err := s.Trigger(l, ir.TriggerAction, ir.Origin{})
	require.NoError(t, err)
	assert.Equal(t, "script-1", h)

	s.Tick(context.Background())
	assert.Equal(t, 1, s.Foreground().PC(), "budget of two: loop, repeat_above")
	assert.Contains(t, buf.String(), "script triggered")
}

func TestLogger_LevelAndFormat(t *testing.T) {
	cfg := Default()
	cfg.Log.Level = "warn"
	cfg.Log.Format = "json"

	var buf bytes.Buffer
	logger := cfg.Logger(&buf)
	logger.Info("hidden")
	logger.Warn("shown", "k", 1)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.True(t, strings.HasPrefix(out, "{"), "json output: %s", out)
	assert.Contains(t, out, `"msg":"shown"`)
}

func TestRunnerOptions(t *testing.T) {
	cfg := Default()
	assert.Len(t, cfg.RunnerOptions(), 2)

	cfg.Run.MaxFrames = 0
	assert.Len(t, cfg.RunnerOptions(), 1)
}
