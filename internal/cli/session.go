package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/evscript/internal/config"
	"github.com/roach88/evscript/internal/engine"
	"github.com/roach88/evscript/internal/ir"
	"github.com/roach88/evscript/internal/store"
)

// consoleMessages is the headless message queue. Every message is printed
// to w (when set) and dismissed the next time the engine polls, as if the
// player pressed confirm at once. Choice sets take the preset answers in
// order, then the first choice.
type consoleMessages struct {
	w       io.Writer
	answers []int
	open    *ir.Message
	texts   []string
	count   int
}

func (q *consoleMessages) Enqueue(msg ir.Message) ir.MessageHandle {
	q.count++
	if len(msg.Choices) == 0 {
		q.texts = append(q.texts, msg.Text)
		q.printf("message: %s\n", msg.Text)
	} else {
		q.printf("choices: %s\n", strings.Join(msg.Choices, " | "))
	}
	q.open = &msg
	return ir.MessageHandle(q.count)
}

func (q *consoleMessages) IsIdle() bool {
	if q.open == nil {
		return true
	}
	msg := q.open
	q.open = nil
	if len(msg.Choices) > 0 && msg.OnChoice != nil {
		pick := 0
		if len(q.answers) > 0 {
			pick = q.answers[0]
			q.answers = q.answers[1:]
		}
		if pick == ir.ChoiceCancelBranch && msg.Cancel != ir.ChoiceCancelBranch {
			pick = msg.Cancel
			if pick == ir.ChoiceCancelDisallowed {
				pick = 0
			}
		}
		q.printf("chose: %d\n", pick)
		msg.OnChoice(pick)
	}
	return true
}

func (q *consoleMessages) printf(format string, args ...any) {
	if q.w != nil {
		fmt.Fprintf(q.w, format, args...)
	}
}

// consoleMap logs mutations. Transfers, move routes and animations finish
// immediately.
type consoleMap struct {
	logger *slog.Logger
	kinds  []string
}

func (m *consoleMap) Apply(_ context.Context, mut ir.Mutation) error {
	m.kinds = append(m.kinds, mut.Kind)
	m.logger.Info("map mutation", "kind", mut.Kind, "target", mut.Target)
	return nil
}

func (m *consoleMap) Transferring() bool { return false }
func (m *consoleMap) Moving(int) bool    { return false }
func (m *consoleMap) Animating(int) bool { return false }

// sessionParams configures newSession.
type sessionParams struct {
	Paths    []string
	Database string // overrides config store.path when set
	Answers  []int
	Echo     io.Writer // message output; nil keeps messages silent
	Logs     io.Writer
	Options  []engine.Option // appended after the config options
}

// session is one headless runtime: loaded scripts, an open store and a
// scheduler wired to console collaborators.
type session struct {
	cfg      config.Config
	logger   *slog.Logger
	lib      *ir.ScriptSet
	store    engine.Store
	close    func() error
	messages *consoleMessages
	maps     *consoleMap
	sched    *engine.Scheduler
}

func newSession(opts *RootOptions, p sessionParams) (*session, error) {
	cfg, err := opts.loadConfig()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if p.Database != "" {
		cfg.Store.Path = p.Database
	}
	logs := p.Logs
	if logs == nil {
		logs = io.Discard
	}
	logger := cfg.Logger(logs)

	lib, err := LoadScripts(p.Paths)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load scripts", err)
	}
	logger.Debug("scripts loaded", "count", lib.Len())

	st, closeStore, err := openStore(cfg.Store.Path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open store", err)
	}

	s := &session{
		cfg:      cfg,
		logger:   logger,
		lib:      lib,
		store:    st,
		close:    closeStore,
		messages: &consoleMessages{w: p.Echo, answers: p.Answers},
		maps:     &consoleMap{logger: logger},
	}
	engineOpts := append(cfg.Options(logger), p.Options...)
	s.sched = engine.New(engine.Env{
		Messages: s.messages,
		Map:      s.maps,
		Store:    st,
		Library:  lib,
	}, engineOpts...)
	return s, nil
}

// openStore opens the SQLite store at path, or an in-memory store when
// path is empty.
func openStore(path string) (engine.Store, func() error, error) {
	if path == "" {
		return store.NewMemory(), func() error { return nil }, nil
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return st, st.Close, nil
}

// triggers resolves the scripts to start. With no ids, every script that
// has a trigger kind starts, in declaration order.
func (s *session) triggers(ids []int) ([]engine.TriggerRequest, error) {
	var reqs []engine.TriggerRequest
	if len(ids) == 0 {
		for _, sc := range s.lib.Scripts() {
			if sc.Trigger == ir.TriggerNone {
				continue
			}
			reqs = append(reqs, engine.TriggerRequest{List: sc.List, Kind: sc.Trigger, Origin: sc.Origin})
		}
		if len(reqs) == 0 {
			return nil, NewExitError(ExitCommandError, "no triggerable scripts (every script is call-only)")
		}
		return reqs, nil
	}
	for _, id := range ids {
		sc, ok := s.lib.Get(id)
		if !ok {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("script %d not found", id))
		}
		kind := sc.Trigger
		if kind == ir.TriggerNone {
			kind = ir.TriggerAction
		}
		reqs = append(reqs, engine.TriggerRequest{List: sc.List, Kind: kind, Origin: sc.Origin})
	}
	return reqs, nil
}

// run drives the scheduler through a Runner until idle, the frame cap or
// cancellation. Failed triggers are logged by the runner and skipped.
func (s *session) run(ctx context.Context, reqs []engine.TriggerRequest, extra ...engine.RunnerOption) error {
	ropts := append(s.cfg.RunnerOptions(), engine.WithStopWhenIdle())
	ropts = append(ropts, extra...)
	runner := engine.NewRunner(s.sched, ropts...)
	for _, req := range reqs {
		runner.Enqueue(req)
	}
	return runner.Run(ctx)
}

// errorDiagnostics counts diagnostics at error level or above.
func errorDiagnostics(diags []engine.Diagnostic) int {
	n := 0
	for _, d := range diags {
		if d.Level >= slog.LevelError {
			n++
		}
	}
	return n
}
