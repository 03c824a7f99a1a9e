// Package runner executes a batch of checks on a bounded pool of workers,
// turning every failure mode of an individual check into a result.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jandubois/healthmon/internal/probe"
)

var (
	// ErrInvalidConcurrency is returned by New when fewer than one worker is requested.
	ErrInvalidConcurrency = errors.New("concurrency must be at least 1")
	// ErrSchedule is returned by Run when no check could be scheduled at all.
	ErrSchedule = errors.New("could not schedule checks")
)

const DefaultCheckTimeout = 60 * time.Second

// Config configures a Runner.
type Config struct {
	Concurrency int
	// CheckTimeout bounds each check execution. Defaults to DefaultCheckTimeout.
	CheckTimeout time.Duration
	Logger       *slog.Logger
}

// Runner executes checks concurrently. It keeps no per-batch state and can be
// reused.
type Runner struct {
	concurrency int
	timeout     time.Duration
	logger      *slog.Logger
}

// New creates a Runner.
func New(cfg Config) (*Runner, error) {
	if cfg.Concurrency < 1 {
		return nil, fmt.Errorf("%w (got %d)", ErrInvalidConcurrency, cfg.Concurrency)
	}
	r := &Runner{
		concurrency: cfg.Concurrency,
		timeout:     cfg.CheckTimeout,
		logger:      cfg.Logger,
	}
	if r.timeout <= 0 {
		r.timeout = DefaultCheckTimeout
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r, nil
}

// Run executes every check and returns exactly one result per check, in
// completion order. Failing, panicking, slow and cancelled checks produce
// UNKNOWN results. Run only fails, with ErrSchedule, when ctx is already done
// before the first check is dispatched.
func (r *Runner) Run(ctx context.Context, checks []probe.Check) ([]probe.Result, error) {
	if len(checks) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSchedule, err)
	}

	workers := min(r.concurrency, len(checks))
	jobs := make(chan probe.Check)
	results := make(chan probe.Result, len(checks))

	var g errgroup.Group
	for range workers {
		g.Go(func() error {
			for check := range jobs {
				if ctx.Err() != nil {
					results <- notStarted(ctx, check)
					continue
				}
				results <- r.execute(ctx, check)
			}
			return nil
		})
	}

dispatch:
	for i, check := range checks {
		if ctx.Err() == nil {
			select {
			case jobs <- check:
				continue
			case <-ctx.Done():
			}
		}
		for _, skipped := range checks[i:] {
			results <- notStarted(ctx, skipped)
		}
		break dispatch
	}
	close(jobs)
	g.Wait()
	close(results)

	out := make([]probe.Result, 0, len(checks))
	for result := range results {
		out = append(out, result)
	}
	return out, nil
}

func notStarted(ctx context.Context, check probe.Check) probe.Result {
	return probe.NewResult(check.Name(), probe.SeverityUnknown, "Check not started: %v", context.Cause(ctx))
}

type outcome struct {
	result probe.Result
	err    error
	panic  any
	stack  []byte
}

// execute runs one check in its own goroutine and waits for it, the per-check
// timeout or batch cancellation. A check still running when the wait ends is
// abandoned; its outcome lands in the buffered channel and is dropped.
func (r *Runner) execute(ctx context.Context, check probe.Check) probe.Result {
	name := check.Name()
	start := time.Now()

	checkCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if v := recover(); v != nil {
				done <- outcome{panic: v, stack: debug.Stack()}
			}
		}()
		result, err := check.Execute(checkCtx)
		done <- outcome{result: result, err: err}
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	var result probe.Result
	select {
	case o := <-done:
		result = r.fromOutcome(name, o)
	case <-timer.C:
		result = probe.NewResult(name, probe.SeverityUnknown, "Check timed out")
		r.logger.Warn("check timed out", "check", name, "timeout", r.timeout)
	case <-ctx.Done():
		result = probe.NewResult(name, probe.SeverityUnknown, "Check cancelled: %v", context.Cause(ctx))
		r.logger.Warn("check cancelled", "check", name, "error", context.Cause(ctx))
	}

	r.logger.Debug("check executed",
		"check", name,
		"severity", result.Severity,
		"duration_ms", time.Since(start).Milliseconds(),
		"message", result.Message,
	)
	return result
}

func (r *Runner) fromOutcome(name string, o outcome) probe.Result {
	switch {
	case o.panic != nil:
		r.logger.Warn("check panicked", "check", name, "panic", o.panic)
		return probe.Failed(name, fmt.Sprintf("panic: %v", o.panic)).WithDetail(string(o.stack))
	case o.err != nil:
		r.logger.Warn("check failed", "check", name, "error", o.err)
		return probe.Failed(name, o.err)
	}
	return normalize(name, o.result)
}

// normalize enforces the result invariants the formatters rely on.
func normalize(name string, result probe.Result) probe.Result {
	result.CheckName = name
	if !result.Severity.Valid() {
		result.Message = fmt.Sprintf("invalid severity %d: %s", int(result.Severity), result.Message)
		result.Severity = probe.SeverityUnknown
	}
	if result.Message == "" {
		result.Message = result.Severity.String() + " (no message)"
	}
	return result
}
