package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jandubois/healthmon/internal/batch"
	"github.com/jandubois/healthmon/internal/config"
	"github.com/jandubois/healthmon/internal/probe"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the checks listed in a configuration file",
	Long: `Run executes every enabled check from a YAML configuration file and
prints one combined report. --output, --concurrency, --timeout and
--deadline override the values from the file.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("config", "c", "", "Configuration file (or HEALTHMON_CONFIG env)")
}

// getConfigPath resolves the configuration file from the flag or environment.
func getConfigPath(cmd *cobra.Command) (string, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = os.Getenv("HEALTHMON_CONFIG")
	}
	if path == "" {
		return "", fmt.Errorf("configuration file required (--config or HEALTHMON_CONFIG)")
	}
	return path, nil
}

func runRun(cmd *cobra.Command, args []string) error {
	path, err := getConfigPath(cmd)
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	slog.Debug("configuration loaded", "path", path, "checks", len(cfg.Enabled()))

	b, err := batch.FromConfig(cfg, probe.DefaultEnv(), batchOptions(cmd))
	if err != nil {
		return err
	}
	format, err := outputFormat(cmd, cfg.Output)
	if err != nil {
		return err
	}
	return runBatch(cmd, b, format)
}
