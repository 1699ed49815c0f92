package cli

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScripts(t *testing.T) {
	dir := t.TempDir()
	intro := writeFile(t, dir, "intro.yaml", introScripts)
	choices := writeFile(t, dir, "more/choices.yaml", choiceScripts)

	set, err := LoadScripts([]string{intro, filepath.Dir(choices)})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 20}, set.IDs())
}

func TestLoadScripts_Errors(t *testing.T) {
	dir := t.TempDir()
	intro := writeFile(t, dir, "intro.yaml", introScripts)
	empty := filepath.Join(dir, "empty")
	writeFile(t, empty, "notes.txt", "nothing")
	badYAML := writeFile(t, dir, "bad.yaml", "scripts: [{id: 1, commands: [{op: nope}]}]\n")
	badCUE := writeFile(t, dir, "bad.cue", "scripts: a: {\n\tid: \n")

	tests := []struct {
		name  string
		paths []string
		code  string
	}{
		{"no paths", nil, ErrCodeNoArgs},
		{"missing", []string{filepath.Join(dir, "missing.yaml")}, ErrCodeNotFound},
		{"no scripts", []string{empty}, ErrCodeNoScripts},
		{"bad yaml", []string{badYAML}, ErrCodeLoadFailed},
		{"bad cue", []string{badCUE}, ErrCodeBuildFailed},
		{"duplicate ids", []string{intro, intro}, ErrCodeLoadFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScripts(tt.paths)
			require.Error(t, err)
			var loadErr *LoadError
			require.True(t, errors.As(err, &loadErr), "got %T", err)
			assert.Equal(t, tt.code, loadErr.Code, loadErr.Error())
		})
	}
}

func TestLoadError_Format(t *testing.T) {
	err := &LoadError{Code: ErrCodeNotFound, Message: "script path: missing"}
	assert.Equal(t, "E005: script path: missing", err.Error())
}
