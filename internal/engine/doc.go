// Package engine implements the evscript runtime: resumable interpreters
// over command lists and the frame-driven scheduler that multiplexes them.
//
// ARCHITECTURE:
//
// Single-Threaded Frame Loop:
// The host calls Scheduler.Tick once per rendered frame from one goroutine.
// Within a tick every interpreter runs to a suspension point or until its
// command budget is spent; handlers never block. This gives:
//   - Deterministic ordering (foreground first, background in creation order)
//   - No locking on the Persistent Store
//   - Reproducible traces for golden testing
//
// Command Processing:
//  1. Interpreter fetches the command at its program counter
//  2. Dispatch resolves the opcode to a Handler
//  3. The handler mutates collaborator or interpreter state
//  4. The Outcome (Continue, Suspend, Redirect) moves the program counter
//
// Suspension:
// A handler that starts an asynchronous effect (message, transfer, movement,
// animation, timed wait, forced action) sets a WaitDescriptor and returns
// Suspend. The wait predicate is re-evaluated once per tick; fetching resumes
// on the tick after it clears. call_common starts a child interpreter that is
// ticked in place of its parent until it terminates.
//
// Failure Containment:
// Every per-command failure is reported as a Diagnostic (logged via slog and
// kept in a bounded ring) and the interpreter carries on. Only
// SCHEDULER_FATAL terminates an interpreter, and never its siblings.
//
// Hosts that receive input on other goroutines wrap the Scheduler in a
// Runner: triggers are queued from any goroutine and applied on the next
// frame boundary by the goroutine that owns the frame loop.
package engine
