package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/evscript/internal/ir"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestIsScriptFile(t *testing.T) {
	for path, want := range map[string]bool{
		"a.cue":  true,
		"a.yaml": true,
		"a.YML":  true,
		"a.json": true,
		"a.txt":  false,
		"cue":    false,
	} {
		assert.Equal(t, want, IsScriptFile(path), path)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	cuePath := writeFile(t, dir, "intro.cue", introSource)
	set, err := LoadFile(cuePath)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 50}, set.IDs())

	yamlPath := writeFile(t, dir, "more.yaml", `
scripts:
  - id: 7
    trigger: parallel
    commands:
      - {op: wait, params: [3]}
`)
	set, err = LoadFile(yamlPath)
	require.NoError(t, err)
	sc, ok := set.Get(7)
	require.True(t, ok)
	assert.Equal(t, ir.TriggerParallel, sc.Trigger)

	jsonPath := writeFile(t, dir, "data.json", `{"scripts": [{"id": 8, "commands": [{"opcode": 230, "indent": 0, "params": [1]}]}]}`)
	set, err = LoadFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, []int{8}, set.IDs())
}

func TestLoadFile_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadFile(filepath.Join(dir, "absent.cue"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read script file")

	txt := writeFile(t, dir, "notes.txt", "hello")
	_, err = LoadFile(txt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported script file extension")

	bad := writeFile(t, dir, "bad.yaml", "scripts: [{id: 1, commandz: []}]\n")
	_, err = LoadFile(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.yaml")
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.cue", "package scripts\n"+`scripts: a: {id: 1, commands: [{op: "wait", params: [1]}]}`)
	writeFile(t, dir, "b.cue", "package scripts\n"+`scripts: b: {id: 2, commands: []}`)
	writeFile(t, dir, "sub/c.yaml", "scripts: [{id: 3, commands: []}]\n")
	writeFile(t, dir, "sub/d.cue", "package scripts\n"+`scripts: d: {id: 4, commands: []}`)
	writeFile(t, dir, "README.md", "not a script")

	set, n, err := LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, 3, n, "two CUE directories plus one YAML file")
	assert.Equal(t, []int{1, 2, 3, 4}, set.IDs())
}

func TestLoadDir_Errors(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "a.yaml", "scripts: []\n")

	_, _, err := LoadDir(filepath.Join(dir, "absent"))
	require.Error(t, err)

	_, _, err = LoadDir(file)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")

	dup := t.TempDir()
	writeFile(t, dup, "a.yaml", "scripts: [{id: 1, commands: []}]\n")
	writeFile(t, dup, "b.yaml", "scripts: [{id: 1, commands: []}]\n")
	_, _, err = LoadDir(dup)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate script id 1")
}

func TestLoadPaths(t *testing.T) {
	dir := t.TempDir()
	one := writeFile(t, dir, "one.yaml", "scripts: [{id: 1, commands: []}]\n")
	writeFile(t, dir, "more/two.cue", "package scripts\n"+`scripts: two: {id: 2, commands: []}`)

	set, err := LoadPaths(one, filepath.Join(dir, "more"))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, set.IDs())

	_, err = LoadPaths(one, one)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate script id 1")

	_, err = LoadPaths(filepath.Join(dir, "absent"))
	require.Error(t, err)
}
