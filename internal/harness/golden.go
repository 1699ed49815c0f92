package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/evscript/internal/ir"
)

// GoldenDir is the default fixture directory for golden traces.
const GoldenDir = "testdata/golden"

// Snapshot renders a run as canonical JSON: the trace, the messages, the
// applied mutations, the diagnostic codes and the final store contents.
// Handles are sequential, so identical runs produce identical bytes.
func Snapshot(name string, result *Result) ([]byte, error) {
	trace := make(ir.Array, len(result.Trace))
	for i, ev := range result.Trace {
		trace[i] = ir.Object{
			"frame":   ir.Int(ev.Frame),
			"handle":  ir.String(ev.Handle),
			"depth":   ir.Int(ev.Depth),
			"script":  ir.Int(ev.Script),
			"pc":      ir.Int(ev.PC),
			"opcode":  ir.Int(ev.Opcode),
			"name":    ir.String(ev.Name),
			"outcome": ir.String(ev.Outcome),
		}
	}

	state := make(ir.Object, len(result.State))
	for _, e := range result.State {
		state[e.Key.String()] = e.Value
	}

	snap := ir.Object{
		"scenario":    ir.String(name),
		"frames":      ir.Int(result.Frames),
		"idle":        ir.Bool(result.Idle),
		"trace":       trace,
		"messages":    stringArray(result.Messages),
		"mutations":   stringArray(result.Mutations),
		"diagnostics": stringArray(result.DiagnosticCodes()),
		"state":       state,
	}
	return ir.MarshalCanonical(snap)
}

func stringArray(ss []string) ir.Array {
	out := make(ir.Array, len(ss))
	for i, s := range ss {
		out[i] = ir.String(s)
	}
	return out
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails. Test failure (via goldie)
// occurs if the snapshot doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares a result's snapshot against a golden file, without
// re-running the scenario. Extra goldie options override the defaults.
func AssertGolden(t *testing.T, name string, result *Result, opts ...goldie.Option) error {
	t.Helper()

	data, err := Snapshot(name, result)
	if err != nil {
		return err
	}

	defaults := []goldie.Option{
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	}
	g := goldie.New(t, append(defaults, opts...)...)
	g.Assert(t, name, data)
	return nil
}
