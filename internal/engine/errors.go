package engine

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/evscript/internal/ir"
)

// RuntimeError represents a failure detected while executing a script.
//
// Runtime errors include:
//   - Unknown opcode: no handler registered, command skipped
//   - Malformed structure: a skip scan ran off the end of the list
//   - Expression failure: the evaluator rejected an expression
//   - Excessive call depth: a call would exceed the configured cap
//   - Scheduler fatal: the interpreter cannot continue and is terminated
//
// All of them are contained in the interpreter that raised them; the
// scheduler only ever observes running versus terminated.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Handle identifies the interpreter that raised the error.
	Handle string

	// PC is the index of the command being executed.
	PC int

	// Opcode is the opcode of that command.
	Opcode ir.Opcode

	// Details contains additional context.
	Details map[string]string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeUnknownOpcode indicates no handler is registered for an opcode.
	ErrCodeUnknownOpcode RuntimeErrorCode = "UNKNOWN_OPCODE"

	// ErrCodeMalformedStructure indicates unbalanced branch or loop markers.
	ErrCodeMalformedStructure RuntimeErrorCode = "MALFORMED_STRUCTURE"

	// ErrCodeExpressionFailed indicates the expression evaluator failed.
	ErrCodeExpressionFailed RuntimeErrorCode = "EXPRESSION_FAILED"

	// ErrCodeExcessiveCallDepth indicates a call exceeded the depth cap.
	ErrCodeExcessiveCallDepth RuntimeErrorCode = "EXCESSIVE_CALL_DEPTH"

	// ErrCodeSchedulerFatal indicates the interpreter was forcibly terminated.
	ErrCodeSchedulerFatal RuntimeErrorCode = "SCHEDULER_FATAL"

	// ErrCodeBadParameter indicates a missing or mistyped command parameter.
	ErrCodeBadParameter RuntimeErrorCode = "BAD_PARAMETER"

	// ErrCodeCollaboratorFailed indicates a collaborator returned an error.
	ErrCodeCollaboratorFailed RuntimeErrorCode = "COLLABORATOR_FAILED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Handle != "" {
		return fmt.Sprintf("%s: %s (handle=%s, pc=%d, opcode=%s)", e.Code, e.Message, e.Handle, e.PC, e.Opcode)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsUnknownOpcode returns true if the error is an unknown opcode error.
// Uses errors.As to handle wrapped errors.
func IsUnknownOpcode(err error) bool { return hasCode(err, ErrCodeUnknownOpcode) }

// IsMalformedStructure returns true if the error is a malformed structure error.
func IsMalformedStructure(err error) bool { return hasCode(err, ErrCodeMalformedStructure) }

// IsExpressionFailure returns true if the error is an expression failure.
func IsExpressionFailure(err error) bool { return hasCode(err, ErrCodeExpressionFailed) }

// IsExcessiveCallDepth returns true if the error is a call depth error.
func IsExcessiveCallDepth(err error) bool { return hasCode(err, ErrCodeExcessiveCallDepth) }

// IsSchedulerFatal returns true if the error terminated an interpreter.
func IsSchedulerFatal(err error) bool { return hasCode(err, ErrCodeSchedulerFatal) }

// Diagnostic is one logged runtime error, retained so the CLI can surface
// problems to content authors after a run.
type Diagnostic struct {
	Frame int64
	Level slog.Level
	Err   *RuntimeError
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("frame %d %s %v", d.Frame, d.Level, d.Err)
}

// DefaultDiagnosticsCapacity bounds the diagnostics ring.
const DefaultDiagnosticsCapacity = 256

// diagnosticRing keeps the most recent diagnostics in arrival order.
type diagnosticRing struct {
	buf     []Diagnostic
	next    int
	full    bool
	dropped int
}

func newDiagnosticRing(capacity int) *diagnosticRing {
	if capacity <= 0 {
		capacity = DefaultDiagnosticsCapacity
	}
	return &diagnosticRing{buf: make([]Diagnostic, capacity)}
}

func (r *diagnosticRing) add(d Diagnostic) {
	if r.full {
		r.dropped++
	}
	r.buf[r.next] = d
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
}

// list returns retained diagnostics, oldest first.
func (r *diagnosticRing) list() []Diagnostic {
	if !r.full {
		out := make([]Diagnostic, r.next)
		copy(out, r.buf[:r.next])
		return out
	}
	out := make([]Diagnostic, 0, len(r.buf))
	out = append(out, r.buf[r.next:]...)
	out = append(out, r.buf[:r.next]...)
	return out
}
