package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/evscript/internal/compiler"
	"github.com/roach88/evscript/internal/ir"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid   bool                       `json:"valid"`
	Scripts int                        `json:"scripts"`
	Digests []ScriptDigest             `json:"digests,omitempty"`
	Errors  []compiler.ValidationError `json:"errors,omitempty"`
}

// ScriptDigest identifies the content of one valid script. The hash covers
// only the commands, so tooling can spot edited scripts between builds.
type ScriptDigest struct {
	ID       int    `json:"id"`
	Trigger  string `json:"trigger,omitempty"`
	Commands int    `json:"commands"`
	Hash     string `json:"hash"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <path>...",
		Short: "Check scripts for structural errors",
		Long: `Load event scripts and check them without running anything.

Reports decode errors (with file positions for CUE) and structural problems:
unclosed branches, loops and choice blocks, indent jumps, missing
parameters, unknown opcodes, missing call targets and labels.

Exit codes:
  0 - All scripts valid
  1 - Validation errors found
  2 - Command error (no paths, path not found)`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	set, err := LoadScripts(paths)
	if err != nil {
		var loadErr *LoadError
		if !errors.As(err, &loadErr) {
			return outputValidateError(formatter, ErrCodeGeneric, err.Error())
		}
		switch loadErr.Code {
		case ErrCodeLoadFailed, ErrCodeBuildFailed:
			return outputValidationErrors(formatter, []compiler.ValidationError{{
				Field:   positionOf(loadErr),
				Message: loadErr.Message,
				Code:    loadErr.Code,
			}})
		default:
			return outputValidateError(formatter, loadErr.Code, loadErr.Message)
		}
	}

	formatter.VerboseLog("Loaded %d script(s) from %d path(s)", set.Len(), len(paths))

	if errs := compiler.Validate(set); len(errs) > 0 {
		return outputValidationErrors(formatter, errs)
	}
	digests, err := scriptDigests(set)
	if err != nil {
		return outputValidateError(formatter, ErrCodeGeneric, err.Error())
	}
	return outputValidateSuccess(formatter, digests)
}

func scriptDigests(set *ir.ScriptSet) ([]ScriptDigest, error) {
	out := make([]ScriptDigest, 0, set.Len())
	for _, id := range set.IDs() {
		sc, _ := set.Get(id)
		hash, err := sc.List.Hash()
		if err != nil {
			return nil, err
		}
		out = append(out, ScriptDigest{
			ID:       id,
			Trigger:  string(sc.Trigger),
			Commands: sc.List.Len(),
			Hash:     hash,
		})
	}
	return out, nil
}

// positionOf renders the CUE position of a load error, or "load".
func positionOf(e *LoadError) string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column())
	}
	return "load"
}

func outputValidateSuccess(formatter *OutputFormatter, digests []ScriptDigest) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Scripts: len(digests), Digests: digests})
	}
	fmt.Fprintf(formatter.Writer, "✓ All %d scripts valid\n", len(digests))
	for _, d := range digests {
		formatter.VerboseLog("script %d: %d commands, %s", d.ID, d.Commands, d.Hash[:12])
	}
	return nil
}

// outputValidateError reports a command-level error (exit code 2).
func outputValidateError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors reports validation failures (exit code 1).
func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	failure := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))

	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: errs},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}
		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return failure
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, e := range errs {
		if e.Script > 0 {
			fmt.Fprintf(formatter.Writer, "script %d command %d\n", e.Script, e.Index)
		} else {
			fmt.Fprintf(formatter.Writer, "%s\n", e.Field)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", e.Code, e.Message)
	}
	return failure
}
