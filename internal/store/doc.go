// Package store provides the Persistent Store for evscript: switches,
// variables and self switches shared by every interpreter.
//
// Two implementations are provided:
//   - Memory: plain maps, used by tests and the headless runner
//   - Store: SQLite-backed durable state for long-running sessions
//
// # Keys
//
// Keys are partitioned into three kinds:
//   - switch: global boolean, addressed by positive ID
//   - variable: global value, addressed by positive ID
//   - self_switch: boolean private to one map element, addressed by
//     (origin, name)
//
// Missing keys read as their kind's zero value (false, 0).
//
// # Concurrency
//
// Neither implementation locks for interpreter access. All mutation happens
// synchronously inside a single-threaded scheduler tick, so write-write
// conflicts within one frame are resolved by iteration order.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//
// Values are stored as canonical JSON text (internal/ir), so reads return
// exactly the value written.
package store
