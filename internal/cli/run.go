package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/evscript/internal/engine"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Frames   int64
	Interval time.Duration
	Scripts  []int
	Choices  []int
}

// RunSummary is the outcome of a headless run.
type RunSummary struct {
	Frames      int64            `json:"frames"`
	Idle        bool             `json:"idle"`
	Messages    []string         `json:"messages"`
	Mutations   []string         `json:"mutations"`
	Diagnostics []DiagnosticView `json:"diagnostics"`
}

func (s RunSummary) String() string {
	state := "idle"
	if !s.Idle {
		state = "still running"
	}
	return fmt.Sprintf("Ran %d frames (%s): %d messages, %d mutations, %d diagnostics",
		s.Frames, state, len(s.Messages), len(s.Mutations), len(s.Diagnostics))
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <path>...",
		Short: "Run scripts headless",
		Long: `Run event scripts headless until nothing is left to run.

Scripts are loaded from the given files and directories. Without --script,
every script with a trigger kind is started on the first frame. Messages are
printed and dismissed at once; choice sets take the --choice answers in
order. State persists in the SQLite database given by --db (or the config
file), and in memory otherwise.

Example:
  evscript run ./scripts
  evscript run --db ./save.db --script 3 --choice 1 ./scripts
  evscript run --config evscript.yaml --frames 600 ./scripts/intro.cue`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScripts(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default: in memory)")
	cmd.Flags().Int64Var(&opts.Frames, "frames", 0, "stop after this many frames (default: config run.max_frames)")
	cmd.Flags().DurationVar(&opts.Interval, "interval", 0, "frame interval, e.g. 16ms (default: config run.frame_interval)")
	cmd.Flags().IntSliceVar(&opts.Scripts, "script", nil, "script IDs to trigger (repeatable)")
	cmd.Flags().IntSliceVar(&opts.Choices, "choice", nil, "answers to choice sets, in order (-2 cancels)")

	return cmd
}

func runScripts(opts *RunOptions, paths []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	params := sessionParams{
		Paths:    paths,
		Database: opts.Database,
		Answers:  opts.Choices,
		Logs:     cmd.ErrOrStderr(),
	}
	if opts.Format != "json" {
		params.Echo = cmd.OutOrStdout()
	}
	s, err := newSession(opts.RootOptions, params)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := s.close(); closeErr != nil {
			s.logger.Error("error closing store", "error", closeErr)
		}
	}()

	reqs, err := s.triggers(opts.Scripts)
	if err != nil {
		return err
	}

	var extra []engine.RunnerOption
	if opts.Frames > 0 {
		extra = append(extra, engine.WithMaxFrames(opts.Frames))
	}
	if opts.Interval > 0 {
		extra = append(extra, engine.WithFrameInterval(opts.Interval))
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			s.logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	formatter.VerboseLog("starting %d scripts", len(reqs))
	if err := s.run(ctx, reqs, extra...); err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "runner error", err)
	}

	diags := s.sched.Diagnostics()
	summary := RunSummary{
		Frames:      s.sched.Frame(),
		Idle:        s.sched.Idle(),
		Messages:    nonNil(s.messages.texts),
		Mutations:   nonNil(s.maps.kinds),
		Diagnostics: diagnosticViews(diags),
	}
	if err := formatter.Success(summary); err != nil {
		return err
	}
	if opts.Format != "json" {
		writeDiagnostics(cmd.OutOrStdout(), diags)
	}

	if n := errorDiagnostics(diags); n > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("run reported %d error diagnostics", n))
	}
	return nil
}

func nonNil(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}
