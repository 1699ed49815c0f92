package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"cuelang.org/go/cue/token"

	"github.com/roach88/evscript/internal/compiler"
	"github.com/roach88/evscript/internal/ir"
)

// LoadError represents an error that occurred while loading scripts.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error code constants, shared by every command.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeNoArgs      = "E002" // No script paths given
	ErrCodeNoScripts   = "E003" // Paths hold no scripts
	ErrCodeLoadFailed  = "E004" // Script file could not be decoded
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeStore       = "E007" // Persistent store unavailable
	ErrCodeConfig      = "E008" // Config file invalid
)

// LoadScripts loads and merges the scripts under paths. Every failure is a
// *LoadError.
func LoadScripts(paths []string) (*ir.ScriptSet, error) {
	if len(paths) == 0 {
		return nil, &LoadError{Code: ErrCodeNoArgs, Message: "no script paths given"}
	}
	set, err := compiler.LoadPaths(paths...)
	if err != nil {
		return nil, convertLoadError(err)
	}
	if set.Len() == 0 {
		return nil, &LoadError{Code: ErrCodeNoScripts, Message: fmt.Sprintf("no scripts found in %s", strings.Join(paths, ", "))}
	}
	return set, nil
}

// convertLoadError maps a loader error to a LoadError with position info.
func convertLoadError(err error) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		code := ErrCodeLoadFailed
		if compileErr.Field == "cue" {
			code = ErrCodeBuildFailed
		}
		return &LoadError{
			Code:    code,
			Message: fmt.Sprintf("%s: %s", compileErr.Field, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	if errors.Is(err, fs.ErrNotExist) {
		return &LoadError{Code: ErrCodeNotFound, Message: err.Error()}
	}
	return &LoadError{Code: ErrCodeLoadFailed, Message: err.Error()}
}
