// Package testutil provides deterministic collaborator doubles for engine,
// harness and CLI tests: a message queue, a map API and battle state.
//
// The doubles record every call so tests can assert on what scripts did,
// and expose setters so tests decide exactly when an asynchronous effect
// finishes.
package testutil
