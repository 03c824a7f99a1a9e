package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jandubois/healthmon/internal/probe"
	"github.com/jandubois/healthmon/internal/probes"
)

// Version is set at build time via -ldflags "-X github.com/jandubois/healthmon/cmd.Version=..."
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "healthmon",
	Short: "Nagios-style health checks with a unified report",
	Long: `Healthmon runs a set of health checks concurrently, aggregates their
results by severity and prints a single text, JSON or Prometheus report.
The exit code is the overall severity (0 OK, 1 WARNING, 2 CRITICAL, 3 UNKNOWN).`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setupLogging,
	RunE: func(cmd *cobra.Command, args []string) error {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Printf("healthmon version %s\n", Version)
			return nil
		}
		if describe, _ := cmd.Flags().GetBool("describe"); describe {
			return printDescriptions(cmd.OutOrStdout())
		}
		return cmd.Help()
	},
}

const probeGroupID = "probes"

// exitCode is set by commands that produce a report.
var exitCode int

// Execute runs the command line and returns the process exit code. Errors
// that prevent a report are printed as an UNKNOWN status line.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s - %v\n", probe.SeverityUnknown, err)
		return probe.SeverityUnknown.ExitCode()
	}
	return exitCode
}

func init() {
	rootCmd.AddGroup(&cobra.Group{ID: probeGroupID, Title: "Built-in Checks:"})

	rootCmd.Flags().Bool("version", false, "Print version and exit")
	rootCmd.Flags().Bool("describe", false, "Output built-in check descriptions as JSON array")

	addPersistentFlags(rootCmd)
}

func addPersistentFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("log-level", "warn", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().CountP("verbose", "v", "Increase log verbosity (-v info, -vv debug)")
	cmd.PersistentFlags().StringP("output", "o", "text", "Report format (text, json, prometheus)")
	cmd.PersistentFlags().Int("concurrency", 0, "Maximum number of checks run at once (default from config, or 4)")
	cmd.PersistentFlags().Duration("timeout", 0, "Per-check timeout (default from config, or 60s)")
	cmd.PersistentFlags().Duration("deadline", 0, "Deadline for the whole batch (default none)")
}

// setupLogging installs a text handler on stderr; stdout carries the report.
func setupLogging(cmd *cobra.Command, args []string) error {
	levelName, _ := cmd.Flags().GetString("log-level")
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(levelName))); err != nil {
		return fmt.Errorf("invalid --log-level %q", levelName)
	}
	switch verbose, _ := cmd.Flags().GetCount("verbose"); {
	case verbose >= 2:
		level = min(level, slog.LevelDebug)
	case verbose == 1:
		level = min(level, slog.LevelInfo)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}

func printDescriptions(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(probes.GetAllDescriptions())
}
