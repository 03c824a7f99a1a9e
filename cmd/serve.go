package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jandubois/healthmon/internal/batch"
	"github.com/jandubois/healthmon/internal/config"
	"github.com/jandubois/healthmon/internal/probe"
	"github.com/jandubois/healthmon/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve health reports over HTTP",
	Long: `Serve runs the checks from a configuration file whenever a report is
requested and serves the result:

  GET /api/health    liveness of the server itself (no auth)
  GET /api/checks    configured checks
  GET /api/report    report (?format=json|text|prometheus); 503 unless OK or WARNING
  GET /metrics       report in Prometheus text format

Reports are cached for --cache-ttl.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "Configuration file (or HEALTHMON_CONFIG env)")
	serveCmd.Flags().Int("port", 0, "Port to listen on (default from config, or 8080)")
	serveCmd.Flags().String("auth-token", "", "Bearer token required by the API (or HEALTHMON_AUTH_TOKEN env)")
	serveCmd.Flags().Duration("cache-ttl", 0, "How long a report is reused (default from config, or 30s)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("shutdown signal received")
		cancel()
	}()

	path, err := getConfigPath(cmd)
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		cfg.Serve.Port = port
	}
	if ttl, _ := cmd.Flags().GetDuration("cache-ttl"); ttl != 0 {
		cfg.Serve.CacheTTL.Duration = ttl
	}
	if token, _ := cmd.Flags().GetString("auth-token"); token != "" {
		cfg.Serve.AuthToken = token
	}
	if cfg.Serve.AuthToken == "" {
		cfg.Serve.AuthToken = os.Getenv("HEALTHMON_AUTH_TOKEN")
	}
	if cfg.Serve.AuthToken == "" {
		slog.Warn("no auth token configured; the report API is open")
	}

	b, err := batch.FromConfig(cfg, probe.DefaultEnv(), batchOptions(cmd))
	if err != nil {
		return fmt.Errorf("building checks: %w", err)
	}

	server := web.NewServer(b, &cfg.Serve, slog.Default())
	slog.Info("starting web server", "port", cfg.Serve.Port, "checks", len(b.Checks()))
	return server.Run(ctx)
}
