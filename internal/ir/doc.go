// Package ir provides the command-list data model for evscript.
//
// This package contains the value, command and script types shared by every
// other internal package. ir imports nothing internal, so it stays the
// foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Command lists are immutable once built; the interpreter never mutates them
//   - Parameters are positional and opaque; handlers interpret them
//   - Canonical JSON (sorted keys, NFC strings) is the only serialization used
//     for hashing, persistence and golden traces
//   - Opcodes follow RPG-Maker-style numbering; 1000-1999 is reserved for
//     externally registered handlers
package ir
