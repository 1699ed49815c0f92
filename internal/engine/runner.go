package engine

import (
	"context"
	"time"
)

// Runner drives a Scheduler from a frame loop.
//
// Thread-safety model:
//   - Enqueue(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
//   - Stop(): safe from any goroutine
//
// All Scheduler access happens inside Run, so the scheduler's single-thread
// requirement holds even when input arrives concurrently.
type Runner struct {
	sched     *Scheduler
	queue     *triggerQueue
	interval  time.Duration
	maxFrames int64
	untilIdle bool
	onFrame   func(s *Scheduler)
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithFrameInterval paces frames. Zero (the default) runs frames back to
// back, which is what headless runs and tests want.
func WithFrameInterval(d time.Duration) RunnerOption {
	return func(r *Runner) {
		r.interval = d
	}
}

// WithMaxFrames stops Run after n frames. Zero means no limit.
func WithMaxFrames(n int64) RunnerOption {
	return func(r *Runner) {
		r.maxFrames = n
	}
}

// WithStopWhenIdle stops Run once no interpreter is live and no trigger is
// queued.
func WithStopWhenIdle() RunnerOption {
	return func(r *Runner) {
		r.untilIdle = true
	}
}

// WithFrameHook calls fn after every frame, from the Run goroutine.
func WithFrameHook(fn func(s *Scheduler)) RunnerOption {
	return func(r *Runner) {
		r.onFrame = fn
	}
}

// NewRunner creates a Runner for s.
func NewRunner(s *Scheduler, opts ...RunnerOption) *Runner {
	r := &Runner{sched: s, queue: newTriggerQueue()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Enqueue submits a trigger for the next frame.
// Returns false if the runner has been stopped.
func (r *Runner) Enqueue(req TriggerRequest) bool {
	return r.queue.Enqueue(req)
}

// Stop makes Run return after the current frame.
func (r *Runner) Stop() {
	r.queue.Close()
}

// Run ticks the scheduler until the context is cancelled, Stop is called,
// the frame limit is reached, or (with WithStopWhenIdle) nothing is left to
// run. It returns ctx.Err() on cancellation and nil otherwise.
//
// ERROR HANDLING: a failed trigger is logged and skipped ("log and
// continue"); per-command failures never reach the runner.
func (r *Runner) Run(ctx context.Context) error {
	logger := r.sched.rt.logger
	logger.Info("runner starting", "max_frames", r.maxFrames, "interval", r.interval)

	var ticker *time.Ticker
	if r.interval > 0 {
		ticker = time.NewTicker(r.interval)
		defer ticker.Stop()
	}

	for {
		if err := ctx.Err(); err != nil {
			logger.Info("runner stopping: context cancelled", "frame", r.sched.Frame())
			r.queue.Close()
			return err
		}

		closed := r.drain()

		if r.untilIdle && r.sched.Idle() && r.queue.Len() == 0 {
			if closed || r.sched.Frame() > 0 {
				logger.Info("runner stopping: idle", "frame", r.sched.Frame())
				return nil
			}
		}
		if closed && r.sched.Idle() {
			logger.Info("runner stopping: queue closed", "frame", r.sched.Frame())
			return nil
		}

		r.sched.Tick(ctx)
		if r.onFrame != nil {
			r.onFrame(r.sched)
		}

		if r.maxFrames > 0 && r.sched.Frame() >= r.maxFrames {
			logger.Info("runner stopping: frame limit", "frame", r.sched.Frame())
			return nil
		}
		if closed {
			logger.Info("runner stopping: stopped", "frame", r.sched.Frame())
			return nil
		}

		if ticker != nil {
			select {
			case <-ctx.Done():
			case <-ticker.C:
			}
		}
	}
}

// drain triggers every queued request and reports whether the queue has
// been closed.
func (r *Runner) drain() bool {
	for _, req := range r.queue.Drain() {
		handle, err := r.sched.Trigger(req.List, req.Kind, req.Origin)
		if err != nil {
			r.sched.rt.logger.Error("trigger failed",
				"error", err,
				"trigger", string(req.Kind),
				"origin", req.Origin.String(),
			)
		}
		if req.Done != nil {
			req.Done(handle, err)
		}
	}

	select {
	case _, ok := <-r.queue.Wait():
		return !ok
	default:
		return false
	}
}
