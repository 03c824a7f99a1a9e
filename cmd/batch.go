package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"slices"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jandubois/healthmon/internal/batch"
	"github.com/jandubois/healthmon/internal/config"
	"github.com/jandubois/healthmon/internal/probe"
	"github.com/jandubois/healthmon/internal/report"
)

// batchOptions reads the persistent runner flags. Unset flags stay zero so
// configuration file values apply.
func batchOptions(cmd *cobra.Command) batch.Options {
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	deadline, _ := cmd.Flags().GetDuration("deadline")
	return batch.Options{
		Concurrency:  concurrency,
		CheckTimeout: timeout,
		Deadline:     deadline,
		Logger:       slog.Default(),
	}
}

// outputFormat returns the --output flag, or fallback when the flag was not
// given.
func outputFormat(cmd *cobra.Command, fallback string) (string, error) {
	format, _ := cmd.Flags().GetString("output")
	if !cmd.Flags().Changed("output") && fallback != "" {
		format = fallback
	}
	if !slices.Contains(report.Formats, format) {
		return "", fmt.Errorf("%w %q (expected one of %v)", report.ErrUnknownFormat, format, report.Formats)
	}
	return format, nil
}

// runChecks runs checks built outside a configuration file.
func runChecks(cmd *cobra.Command, checks []probe.Check, opts batch.Options) error {
	if opts.Concurrency == 0 {
		opts.Concurrency = config.DefaultConcurrency
	}
	b, err := batch.New(checks, opts)
	if err != nil {
		return err
	}
	format, err := outputFormat(cmd, "")
	if err != nil {
		return err
	}
	return runBatch(cmd, b, format)
}

// runBatch runs b once, prints the report to stdout and records the overall
// severity as the exit code. SIGINT and SIGTERM cancel the run; the checks
// still in flight are reported as cancelled.
func runBatch(cmd *cobra.Command, b *batch.Batch, format string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rep, err := b.Run(ctx)
	if err != nil {
		return err
	}
	out, err := rep.Format(format)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), out)
	exitCode = rep.Summary.Overall.ExitCode()
	return nil
}
