package ir

// Version constants for the script format and runtime.
const (
	// FormatVersion is the script file format version.
	FormatVersion = "1"

	// RuntimeVersion is the evscript runtime version.
	RuntimeVersion = "0.1.0"
)
