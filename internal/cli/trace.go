package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/evscript/internal/engine"
	"github.com/roach88/evscript/internal/ir"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Frames  int64
	Scripts []int
	Choices []int
	Opcode  string // show only this opcode (name or number)
	Handle  string // show only this interpreter
}

// TraceOutput is the JSON payload of the trace command.
type TraceOutput struct {
	Frames      int64               `json:"frames"`
	Events      []engine.TraceEvent `json:"events"`
	Diagnostics []DiagnosticView    `json:"diagnostics"`
}

// traceHandlePrefix names interpreters "h-1", "h-2", ... so traces diff
// cleanly between runs.
const traceHandlePrefix = "h"

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace <path>...",
		Short: "Run scripts and print the command trace",
		Long: `Run event scripts headless and print every executed command.

Each line shows the frame, interpreter handle, call depth, script, program
counter, opcode and outcome (continue, suspend or redirect). Handles are
sequential, so two traces of the same scripts are byte-identical. State is
kept in memory.

Example:
  evscript trace ./scripts
  evscript trace --script 1 --opcode show_message ./scripts
  evscript trace --format json --choice 1 ./scripts/shop.cue`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, args, cmd)
		},
	}

	cmd.Flags().Int64Var(&opts.Frames, "frames", 0, "stop after this many frames (default: config run.max_frames)")
	cmd.Flags().IntSliceVar(&opts.Scripts, "script", nil, "script IDs to trigger (repeatable)")
	cmd.Flags().IntSliceVar(&opts.Choices, "choice", nil, "answers to choice sets, in order (-2 cancels)")
	cmd.Flags().StringVar(&opts.Opcode, "opcode", "", "filter to one opcode (name or number)")
	cmd.Flags().StringVar(&opts.Handle, "handle", "", "filter to one interpreter handle")

	return cmd
}

func runTrace(opts *TraceOptions, paths []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	filter, err := traceFilter(opts.Opcode, opts.Handle)
	if err != nil {
		return err
	}

	var events []engine.TraceEvent
	s, err := newSession(opts.RootOptions, sessionParams{
		Paths:   paths,
		Answers: opts.Choices,
		Logs:    formatter.GetErrWriter(),
		Options: []engine.Option{
			engine.WithHandleGenerator(engine.NewSequenceGenerator(traceHandlePrefix)),
			engine.WithObserver(func(ev engine.TraceEvent) {
				if filter(ev) {
					events = append(events, ev)
				}
			}),
		},
	})
	if err != nil {
		return err
	}
	defer s.close()

	reqs, err := s.triggers(opts.Scripts)
	if err != nil {
		return err
	}

	// Paced runs make no sense for a trace.
	extra := []engine.RunnerOption{engine.WithFrameInterval(0)}
	if opts.Frames > 0 {
		extra = append(extra, engine.WithMaxFrames(opts.Frames))
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.run(ctx, reqs, extra...); err != nil {
		return WrapExitError(ExitFailure, "runner error", err)
	}

	if events == nil {
		events = []engine.TraceEvent{}
	}
	out := TraceOutput{
		Frames:      s.sched.Frame(),
		Events:      events,
		Diagnostics: diagnosticViews(s.sched.Diagnostics()),
	}
	if opts.Format == "json" {
		return formatter.Success(out)
	}
	writeTimeline(formatter.Writer, out)
	writeDiagnostics(formatter.Writer, s.sched.Diagnostics())
	return nil
}

// traceFilter builds the event predicate for --opcode and --handle.
func traceFilter(opcode, handle string) (func(engine.TraceEvent) bool, error) {
	name := ""
	if opcode != "" {
		op, ok := ir.ParseOpcode(opcode)
		if !ok {
			n, err := strconv.Atoi(opcode)
			if err != nil {
				return nil, NewExitError(ExitCommandError, fmt.Sprintf("unknown opcode %q", opcode))
			}
			op = ir.Opcode(n)
		}
		name = op.String()
	}
	return func(ev engine.TraceEvent) bool {
		if name != "" && ev.Name != name {
			return false
		}
		return handle == "" || ev.Handle == handle
	}, nil
}

// writeTimeline prints one event per line, indented by call depth.
func writeTimeline(w io.Writer, out TraceOutput) {
	fmt.Fprintf(w, "Trace: %d events over %d frames\n\n", len(out.Events), out.Frames)
	for _, ev := range out.Events {
		indent := strings.Repeat("  ", ev.Depth)
		fmt.Fprintf(w, "%5d  %-6s %sscript %d pc %-3d %-24s -> %s\n",
			ev.Frame, ev.Handle, indent, ev.Script, ev.PC, ev.Name, ev.Outcome)
	}
}
