// Package config loads the optional YAML runtime configuration of the
// evscript CLI and turns it into engine options.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/evscript/internal/engine"
)

// Handle generator names.
const (
	HandlesUUID     = "uuid"
	HandlesSequence = "sequence"
)

// Config is the runtime configuration file.
type Config struct {
	Engine EngineConfig `yaml:"engine"`
	Run    RunConfig    `yaml:"run"`
	Store  StoreConfig  `yaml:"store"`
	Log    LogConfig    `yaml:"log"`
}

// EngineConfig tunes the scheduler.
type EngineConfig struct {
	ForegroundBudget    int    `yaml:"foreground_budget"`
	BackgroundBudget    int    `yaml:"background_budget"`
	MaxCallDepth        int    `yaml:"max_call_depth"`
	DiagnosticsCapacity int    `yaml:"diagnostics_capacity"`
	Handles             string `yaml:"handles"`
}

// RunConfig drives the headless frame loop.
type RunConfig struct {
	// MaxFrames stops the run after this many frames; 0 runs until idle.
	MaxFrames int64 `yaml:"max_frames"`
	// FrameInterval paces frames, e.g. "16ms"; 0 runs them back to back.
	FrameInterval time.Duration `yaml:"frame_interval"`
}

// StoreConfig selects the Persistent Store. An empty Path keeps state in
// memory.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// LogConfig configures slog output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Engine: EngineConfig{
			ForegroundBudget:    engine.DefaultForegroundBudget,
			BackgroundBudget:    engine.DefaultBackgroundBudget,
			MaxCallDepth:        engine.DefaultMaxCallDepth,
			DiagnosticsCapacity: engine.DefaultDiagnosticsCapacity,
			Handles:             HandlesUUID,
		},
		Run: RunConfig{MaxFrames: 10000},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads and validates the file at path. Fields absent from the file
// keep their defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result.
// Unknown fields are rejected to catch typos.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks ranges and enumerations. All problems are reported
// together.
func (c Config) Validate() error {
	var errs []error
	if c.Engine.ForegroundBudget <= 0 {
		errs = append(errs, fmt.Errorf("engine.foreground_budget must be positive, got %d", c.Engine.ForegroundBudget))
	}
	if c.Engine.BackgroundBudget <= 0 {
		errs = append(errs, fmt.Errorf("engine.background_budget must be positive, got %d", c.Engine.BackgroundBudget))
	}
	if c.Engine.MaxCallDepth < 0 {
		errs = append(errs, fmt.Errorf("engine.max_call_depth must not be negative, got %d", c.Engine.MaxCallDepth))
	}
	if c.Engine.DiagnosticsCapacity <= 0 {
		errs = append(errs, fmt.Errorf("engine.diagnostics_capacity must be positive, got %d", c.Engine.DiagnosticsCapacity))
	}
	switch c.Engine.Handles {
	case HandlesUUID, HandlesSequence:
	default:
		errs = append(errs, fmt.Errorf("engine.handles must be %q or %q, got %q", HandlesUUID, HandlesSequence, c.Engine.Handles))
	}
	if c.Run.MaxFrames < 0 {
		errs = append(errs, fmt.Errorf("run.max_frames must not be negative, got %d", c.Run.MaxFrames))
	}
	if c.Run.FrameInterval < 0 {
		errs = append(errs, fmt.Errorf("run.frame_interval must not be negative, got %s", c.Run.FrameInterval))
	}
	if _, err := c.Log.level(); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be \"text\" or \"json\", got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// Options converts the engine section to scheduler options.
func (c Config) Options(logger *slog.Logger) []engine.Option {
	opts := []engine.Option{
		engine.WithForegroundBudget(c.Engine.ForegroundBudget),
		engine.WithBackgroundBudget(c.Engine.BackgroundBudget),
		engine.WithMaxCallDepth(c.Engine.MaxCallDepth),
		engine.WithDiagnosticsCapacity(c.Engine.DiagnosticsCapacity),
	}
	if logger != nil {
		opts = append(opts, engine.WithLogger(logger))
	}
	if c.Engine.Handles == HandlesSequence {
		opts = append(opts, engine.WithHandleGenerator(engine.NewSequenceGenerator("script")))
	}
	return opts
}

// RunnerOptions converts the run section to runner options.
func (c Config) RunnerOptions() []engine.RunnerOption {
	opts := []engine.RunnerOption{engine.WithFrameInterval(c.Run.FrameInterval)}
	if c.Run.MaxFrames > 0 {
		opts = append(opts, engine.WithMaxFrames(c.Run.MaxFrames))
	}
	return opts
}

// Logger builds a slog logger writing to w.
func (c Config) Logger(w io.Writer) *slog.Logger {
	level, _ := c.Log.level()
	hopts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, hopts))
	}
	return slog.New(slog.NewTextHandler(w, hopts))
}

func (l LogConfig) level() (slog.Level, error) {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("log.level must be debug, info, warn or error, got %q", l.Level)
	}
}
