package main

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/systmms/apimprobe/cmd/apimprobe/commands"
	"github.com/systmms/apimprobe/internal/config"
	aperrors "github.com/systmms/apimprobe/internal/errors"
	"github.com/systmms/apimprobe/internal/gateway"
	"github.com/systmms/apimprobe/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", aperrors.SimplifyError(err))
		os.Exit(1)
	}
}

func run() error {
	// Global flags
	var (
		configFile  string
		noColor     bool
		debug       bool
		metricsFile string
	)

	// Create config placeholder
	cfg := &config.Config{}

	rootCmd := &cobra.Command{
		Use:   "apimprobe",
		Short: "Authenticated probe client for a multi-tenant API gateway",
		Long: `apimprobe calls tenant APIs behind the gateway with the tenant's subscription
key, retries transient failures and rate limiting, falls back to a rotated key
from the secret service on 401, and follows asynchronous operations.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg.Path = configFile
			cfg.Logger = logging.New(debug, noColor)
			cfg.MetricsFile = metricsFile

			if metricsFile != "" {
				gateway.InitMetrics()
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "apimprobe.yaml", "Config file path")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics to this file on exit")

	rootCmd.AddCommand(
		commands.NewCallCommand(cfg),
		commands.NewPollCommand(cfg),
		commands.NewRefreshCommand(cfg),
		commands.NewClassifyCommand(cfg),
		commands.NewDoctorCommand(cfg),
	)

	err := rootCmd.Execute()

	if cfg.MetricsFile != "" {
		if werr := prometheus.WriteToTextfile(cfg.MetricsFile, prometheus.DefaultGatherer); werr != nil {
			cfg.Logger.Warn("Failed to write metrics to %s: %v", cfg.MetricsFile, werr)
		}
	}
	return err
}
