package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// introScripts holds a triggerable branch script (1), a call-only script
// (2) and an autorun that sets variable 5 (3).
const introScripts = `
scripts:
  - id: 1
    trigger: action
    origin: {map: 1, event: 4}
    commands:
      - {op: conditional_branch, params: [0, 1, 0]}
      - {op: show_message, indent: 1, params: ["yes"]}
      - {op: else}
      - {op: show_message, indent: 1, params: ["no"]}
      - {op: branch_end}
  - id: 2
    commands:
      - {op: set_switch, params: [3, 3, 0]}
  - id: 3
    trigger: autorun
    commands:
      - {op: set_variable, params: [5, 5, 0, 0, 42]}
`

const choiceScripts = `
scripts:
  - id: 20
    trigger: action
    commands:
      - {op: show_choices, params: [["left", "right"]]}
      - {op: when_choice, params: [0]}
      - {op: show_message, indent: 1, params: ["went left"]}
      - {op: when_choice, params: [1]}
      - {op: show_message, indent: 1, params: ["went right"]}
      - {op: choices_end}
`

// recursiveScripts calls itself until the call depth limit trips.
const recursiveScripts = `
scripts:
  - id: 4
    trigger: action
    commands:
      - {op: call_common, params: [4]}
`

// brokenScripts has an unclosed branch.
const brokenScripts = `
scripts:
  - id: 9
    trigger: action
    commands:
      - {op: conditional_branch, params: [0, 1, 0]}
      - {op: show_message, indent: 1, params: ["never closed"]}
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// decodeData unmarshals the data field of a JSON CLIResponse into out.
func decodeData(t *testing.T, output string, out any) CLIResponse {
	t.Helper()
	var raw struct {
		CLIResponse
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &raw), output)
	if out != nil {
		require.NoError(t, json.Unmarshal(raw.Data, out), output)
	}
	return raw.CLIResponse
}
