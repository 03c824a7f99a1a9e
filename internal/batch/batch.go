// Package batch wires a configured set of checks to a runner and turns a run
// into an arranged, summarized report.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jandubois/healthmon/internal/config"
	"github.com/jandubois/healthmon/internal/probe"
	"github.com/jandubois/healthmon/internal/probes"
	"github.com/jandubois/healthmon/internal/report"
	"github.com/jandubois/healthmon/internal/runner"
)

// Batch is a set of checks together with the runner that executes them.
type Batch struct {
	checks   []probe.Check
	runner   *runner.Runner
	deadline time.Duration
	logger   *slog.Logger
}

// Options configures a Batch.
type Options struct {
	Concurrency  int
	CheckTimeout time.Duration
	// Deadline bounds the whole run. Zero means no deadline.
	Deadline time.Duration
	Logger   *slog.Logger
}

// Report is the outcome of one run.
type Report struct {
	Results  []probe.Result
	Summary  report.Summary
	Started  time.Time
	Duration time.Duration
}

// Format renders the report in the named output format.
func (r *Report) Format(kind string) (string, error) {
	return report.Format(kind, r.Results, r.Summary)
}

// New creates a Batch for checks.
func New(checks []probe.Check, opts Options) (*Batch, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	r, err := runner.New(runner.Config{
		Concurrency:  opts.Concurrency,
		CheckTimeout: opts.CheckTimeout,
		Logger:       opts.Logger,
	})
	if err != nil {
		return nil, err
	}
	return &Batch{checks: checks, runner: r, deadline: opts.Deadline, logger: opts.Logger}, nil
}

// FromConfig builds every enabled check in cfg through the registry.
func FromConfig(cfg *config.Config, env probe.Env, opts Options) (*Batch, error) {
	var checks []probe.Check
	for _, cc := range cfg.Enabled() {
		check, err := probes.Build(cc.Type, cc.Name, cc.Args, env)
		if err != nil {
			return nil, err
		}
		checks = append(checks, check)
	}
	if opts.Concurrency == 0 {
		opts.Concurrency = cfg.Concurrency
	}
	if opts.CheckTimeout == 0 {
		opts.CheckTimeout = cfg.Timeout.Duration
	}
	if opts.Deadline == 0 {
		opts.Deadline = cfg.Deadline.Duration
	}
	return New(checks, opts)
}

// Checks returns the configured checks in configuration order.
func (b *Batch) Checks() []probe.Check {
	return b.checks
}

// Run executes all checks once. Results follow configuration order.
func (b *Batch) Run(ctx context.Context) (*Report, error) {
	if len(b.checks) == 0 {
		return nil, report.ErrNoChecks
	}
	if b.deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, b.deadline, fmt.Errorf("batch deadline of %s exceeded", b.deadline))
		defer cancel()
	}

	started := time.Now()
	results, err := b.runner.Run(ctx, b.checks)
	if err != nil {
		return nil, err
	}

	order := make([]string, len(b.checks))
	for i, c := range b.checks {
		order[i] = c.Name()
	}
	results = report.Arrange(results, order)

	summary, err := report.Summarize(results)
	if err != nil {
		return nil, err
	}
	duration := time.Since(started)
	b.logger.Info("batch complete",
		"checks", summary.Total,
		"severity", summary.Overall,
		"duration_ms", duration.Milliseconds())
	return &Report{Results: results, Summary: summary, Started: started, Duration: duration}, nil
}
