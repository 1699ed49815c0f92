package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/evscript/internal/ir"
)

// Scenario defines a conformance test scenario.
// A scenario seeds the persistent store, loads scripts, triggers them on
// chosen frames, runs the scheduler and asserts on the resulting state,
// messages and trace.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Scripts are inline script documents, in the script file format.
	Scripts []ir.ScriptDoc `yaml:"scripts,omitempty"`

	// Files lists script files (.cue, .yaml, .yml, .json) to load.
	// Relative paths are resolved against the scenario file's directory.
	Files []string `yaml:"files,omitempty"`

	// Engine overrides scheduler settings. Zero values keep the defaults.
	Engine EngineSettings `yaml:"engine,omitempty"`

	// State seeds the persistent store before the first frame.
	State InitialState `yaml:"state,omitempty"`

	// Choices are the answers given to choice sets, in order.
	// Use -2 to cancel.
	Choices []int `yaml:"choices,omitempty"`

	// BattleForced sets the battle system's forced-action flag.
	BattleForced bool `yaml:"battle_forced,omitempty"`

	// Triggers start scripts on given frames.
	Triggers []TriggerStep `yaml:"triggers"`

	// Frames caps the number of frames run. The run also stops once every
	// trigger has fired and no interpreter is live.
	// Default: DefaultMaxFrames
	Frames int64 `yaml:"frames,omitempty"`

	// Assertions validate the final state and the trace.
	Assertions []Assertion `yaml:"assertions"`

	// baseDir resolves relative Files entries.
	baseDir string
}

// DefaultMaxFrames caps a scenario run when frames is not set.
const DefaultMaxFrames = 1000

// EngineSettings mirrors the scheduler options a scenario may override.
type EngineSettings struct {
	ForegroundBudget int `yaml:"foreground_budget,omitempty"`
	BackgroundBudget int `yaml:"background_budget,omitempty"`
	MaxCallDepth     int `yaml:"max_call_depth,omitempty"`
}

// InitialState seeds switches, variables and self switches.
type InitialState struct {
	Switches     map[int]bool     `yaml:"switches,omitempty"`
	Variables    map[int]any      `yaml:"variables,omitempty"`
	SelfSwitches []SelfSwitchSeed `yaml:"self_switches,omitempty"`
}

// SelfSwitchSeed is one self switch entry, scoped to an origin.
type SelfSwitchSeed struct {
	Map   int    `yaml:"map"`
	Event int    `yaml:"event"`
	Name  string `yaml:"name"`
	Value bool   `yaml:"value"`
}

// TriggerStep starts one script.
type TriggerStep struct {
	// Script is the script ID.
	Script int `yaml:"script"`

	// Kind overrides the script's own trigger kind.
	Kind string `yaml:"kind,omitempty"`

	// Frame is the number of frames run before the trigger fires.
	Frame int64 `yaml:"frame,omitempty"`

	// Origin overrides the script's own origin.
	Origin *ir.Origin `yaml:"origin,omitempty"`
}

// Assertion validates the outcome of a run.
type Assertion struct {
	// Type specifies the assertion type:
	//   - "messages": the shown message texts equal Texts, in order
	//   - "variable": variable ID equals Value
	//   - "switch": switch ID equals Value
	//   - "self_switch": self switch Name of (Map, Event) equals Value
	//   - "idle": no interpreter is live after the run
	//   - "diagnostic": Code was reported Count times (at least once when Count is unset)
	//   - "trace_count": opcode Op was executed Count times
	//   - "trace_order": opcodes Ops were executed in this order (gaps allowed)
	//   - "mutations": the applied map mutation kinds equal Kinds, in order
	//   - "frames": the run took exactly Count frames
	Type string `yaml:"type"`

	ID    int    `yaml:"id,omitempty"`
	Map   int    `yaml:"map,omitempty"`
	Event int    `yaml:"event,omitempty"`
	Name  string `yaml:"name,omitempty"`
	Value any    `yaml:"value,omitempty"`

	Texts []string `yaml:"texts,omitempty"`
	Code  string   `yaml:"code,omitempty"`
	Count *int     `yaml:"count,omitempty"`
	Op    string   `yaml:"op,omitempty"`
	Ops   []string `yaml:"ops,omitempty"`
	Kinds []string `yaml:"kinds,omitempty"`
}

// Assertion type constants.
const (
	AssertMessages   = "messages"
	AssertVariable   = "variable"
	AssertSwitch     = "switch"
	AssertSelfSwitch = "self_switch"
	AssertIdle       = "idle"
	AssertDiagnostic = "diagnostic"
	AssertTraceCount = "trace_count"
	AssertTraceOrder = "trace_order"
	AssertMutations  = "mutations"
	AssertFrames     = "frames"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	scenario.baseDir = filepath.Dir(path)

	for _, f := range scenario.Files {
		if _, err := os.Stat(scenario.resolve(f)); err != nil {
			return nil, fmt.Errorf("invalid scenario: script file not found: %s", f)
		}
	}
	return scenario, nil
}

// ParseScenario parses scenario YAML. Relative file paths are resolved
// against the working directory.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // catches typos like "assertion:" vs "assertions:"
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func (s *Scenario) resolve(path string) string {
	if filepath.IsAbs(path) || s.baseDir == "" {
		return path
	}
	return filepath.Join(s.baseDir, path)
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Scripts) == 0 && len(s.Files) == 0 {
		return fmt.Errorf("scripts or files is required")
	}
	if len(s.Triggers) == 0 {
		return fmt.Errorf("triggers list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	if s.Frames < 0 {
		return fmt.Errorf("frames must be non-negative, got %d", s.Frames)
	}

	for i, step := range s.Triggers {
		if step.Frame < 0 {
			return fmt.Errorf("triggers[%d]: frame must be non-negative", i)
		}
		if k := ir.TriggerKind(step.Kind); !k.Valid() {
			return fmt.Errorf("triggers[%d]: unknown kind %q", i, step.Kind)
		}
	}
	for i, seed := range s.State.SelfSwitches {
		if seed.Name == "" {
			return fmt.Errorf("state.self_switches[%d]: name is required", i)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertMessages, AssertIdle:
	case AssertVariable, AssertSwitch:
		if a.ID <= 0 || a.Value == nil {
			return fmt.Errorf("assertions[%d]: %s requires a positive id and a value", index, a.Type)
		}
	case AssertSelfSwitch:
		if a.Name == "" || a.Value == nil {
			return fmt.Errorf("assertions[%d]: self_switch requires name and value", index)
		}
	case AssertDiagnostic:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: diagnostic requires code", index)
		}
	case AssertTraceCount:
		if a.Op == "" || a.Count == nil {
			return fmt.Errorf("assertions[%d]: trace_count requires op and count", index)
		}
	case AssertTraceOrder:
		if len(a.Ops) == 0 {
			return fmt.Errorf("assertions[%d]: trace_order requires ops", index)
		}
	case AssertMutations:
	case AssertFrames:
		if a.Count == nil {
			return fmt.Errorf("assertions[%d]: frames requires count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown type %q", index, a.Type)
	}
	return nil
}
