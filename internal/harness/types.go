package harness

import (
	"github.com/roach88/evscript/internal/engine"
	"github.com/roach88/evscript/internal/store"
)

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	Pass bool `json:"pass"`

	// Trace contains every executed command in order.
	Trace []engine.TraceEvent `json:"trace"`

	// Messages holds the text of every plain message shown.
	Messages []string `json:"messages"`

	// Mutations holds the kinds of every applied map mutation.
	Mutations []string `json:"mutations"`

	// Diagnostics are the runtime errors reported during the run.
	Diagnostics []engine.Diagnostic `json:"-"`

	// State is the final store contents in deterministic order.
	State []store.Entry `json:"-"`

	// Frames is the number of frames run.
	Frames int64 `json:"frames"`

	// Idle reports whether no interpreter was live at the end.
	Idle bool `json:"idle"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:      true,
		Trace:     []engine.TraceEvent{},
		Messages:  []string{},
		Mutations: []string{},
		Errors:    []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// DiagnosticCodes returns the code of every diagnostic, in order.
func (r *Result) DiagnosticCodes() []string {
	out := make([]string, len(r.Diagnostics))
	for i, d := range r.Diagnostics {
		out[i] = string(d.Err.Code)
	}
	return out
}
