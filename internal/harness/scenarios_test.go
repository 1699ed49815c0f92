package harness

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestScenarios runs every scenario under testdata/scenarios. They double as
// authoring examples and regression fixtures.
func TestScenarios(t *testing.T) {
	paths, err := FindScenarios("testdata/scenarios")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)
			assert.NotEmpty(t, scenario.Description)

			result, err := New().Run(context.Background(), scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.NotEmpty(t, result.Trace)
		})
	}
}

func TestFindScenarios(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	for _, name := range []string{"b.yaml", "a.yml", "notes.txt", "nested/c.yaml"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}

	paths, err := FindScenarios(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.yml"),
		filepath.Join(dir, "b.yaml"),
		filepath.Join(dir, "nested", "c.yaml"),
	}, paths)

	single, err := FindScenarios(filepath.Join(dir, "b.yaml"))
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "b.yaml")}, single)

	_, err = FindScenarios(filepath.Join(dir, "absent"))
	var notFound *ScenarioNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, filepath.Join(dir, "absent"), notFound.Path)
}

func TestRunSuite(t *testing.T) {
	dir := t.TempDir()
	write := func(name, src string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
		return path
	}
	pass := write("pass.yaml", minimalScenario)
	fail := write("fail.yaml", `
name: fail
description: "wrong expectation"
scripts: [{id: 1, trigger: action, commands: []}]
triggers: [{script: 1}]
assertions: [{type: switch, id: 1, value: true}]
`)
	broken := write("broken.yaml", "name: [\n")
	unrunnable := write("unrunnable.yaml", `
name: unrunnable
description: "trigger for a missing script"
scripts: [{id: 1, trigger: action, commands: []}]
triggers: [{script: 7}]
assertions: [{type: idle}]
`)

	suite := New().RunSuite(context.Background(), []string{pass, fail, broken, unrunnable})

	assert.Equal(t, 4, suite.Total)
	assert.Equal(t, 1, suite.Passed)
	assert.Equal(t, 3, suite.Failed)
	require.Len(t, suite.Results, 2, "results only for scenarios that ran")
	assert.Equal(t, "minimal", suite.Results[0].Name)

	require.Len(t, suite.Failures, 3)
	assert.Equal(t, "fail", suite.Failures[0].Name)
	assert.Contains(t, suite.Failures[0].Error, "scenario assertions failed")
	assert.Equal(t, broken, suite.Failures[1].Path)
	assert.Contains(t, suite.Failures[1].Error, "failed to load scenario")
	assert.Equal(t, "unrunnable", suite.Failures[2].Name)
	assert.Contains(t, suite.Failures[2].Error, "scenario execution failed")
}
