package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/pricerelay/pkg/cli"
	"mercator-hq/pricerelay/pkg/config"
	"mercator-hq/pricerelay/pkg/telemetry/logging"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "pricerelay",
	Short: "Server-sent price stream relay",
	Long: `Pricerelay relays a server-sent events price stream from an upstream feed to
any number of clients.

It provides:
  - A byte-for-byte SSE relay with bidirectional cancellation
  - A reconnecting terminal client that tracks price direction
  - A price feed simulator for local development
  - A journal of relayed sessions with retention`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (defaults apply when empty)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// loadConfig loads the global configuration once per process.
func loadConfig() (*config.Config, error) {
	if err := config.Initialize(cfgFile); err != nil {
		return nil, cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	return config.GetConfig(), nil
}

// setupLogging installs the configured logger as the slog default. Logs go
// to stderr so command output on stdout stays machine readable.
func setupLogging(cfg *config.Config) (*logging.Logger, error) {
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	logger, err := logging.New(cfg.Telemetry.Logging, os.Stderr)
	if err != nil {
		return nil, cli.NewConfigError("telemetry.logging", err.Error())
	}
	slog.SetDefault(logger.Logger)
	return logger, nil
}
