package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/evscript/internal/ir"
	"github.com/roach88/evscript/internal/store"
)

// StateOptions holds flags for the state command.
type StateOptions struct {
	*RootOptions
	Database string
	Kind     string
	Reset    bool
}

// StateEntry is the JSON form of one stored value.
type StateEntry struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// NewStateCommand creates the state command.
func NewStateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect or reset a persistent store",
		Long: `Print the switches, variables and self switches held in a SQLite
store written by "evscript run --db".

Example:
  evscript state --db ./save.db
  evscript state --db ./save.db --kind variable --format json
  evscript state --db ./save.db --reset`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runState(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "only show switch, variable or self_switch entries")
	cmd.Flags().BoolVar(&opts.Reset, "reset", false, "delete all stored state")

	return cmd
}

func runState(opts *StateOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	switch store.Kind(opts.Kind) {
	case "", store.KindSwitch, store.KindVariable, store.KindSelfSwitch:
	default:
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid kind %q", opts.Kind))
	}

	// store.Open creates missing files; inspecting one makes no sense.
	if _, err := os.Stat(opts.Database); err != nil {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("database not found: %s", opts.Database), nil)
		return WrapExitError(ExitCommandError, "database not found", err)
	}
	st, err := store.Open(opts.Database)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open store", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if opts.Reset {
		if err := st.Reset(ctx); err != nil {
			return WrapExitError(ExitFailure, "failed to reset store", err)
		}
		if opts.Format == "json" {
			return formatter.Success(map[string]bool{"reset": true})
		}
		return formatter.Success("Store reset.")
	}

	entries, err := st.Dump(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read store", err)
	}
	views := make([]StateEntry, 0, len(entries))
	for _, e := range entries {
		if opts.Kind != "" && e.Key.Kind != store.Kind(opts.Kind) {
			continue
		}
		data, err := ir.MarshalCanonical(e.Value)
		if err != nil {
			return WrapExitError(ExitFailure, fmt.Sprintf("failed to encode %s", e.Key), err)
		}
		views = append(views, StateEntry{Key: e.Key.String(), Value: data})
	}

	if opts.Format == "json" {
		return formatter.Success(views)
	}
	if len(views) == 0 {
		fmt.Fprintln(formatter.Writer, "Store is empty.")
		return nil
	}
	for _, v := range views {
		fmt.Fprintf(formatter.Writer, "%s = %s\n", v.Key, v.Value)
	}
	return nil
}
