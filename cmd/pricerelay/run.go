package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"mercator-hq/pricerelay/pkg/cli"
	"mercator-hq/pricerelay/pkg/config"
	"mercator-hq/pricerelay/pkg/journal/recorder"
	"mercator-hq/pricerelay/pkg/journal/retention"
	"mercator-hq/pricerelay/pkg/journal/storage"
	"mercator-hq/pricerelay/pkg/server"
	"mercator-hq/pricerelay/pkg/telemetry/logging"
	"mercator-hq/pricerelay/pkg/telemetry/metrics"
	"mercator-hq/pricerelay/pkg/telemetry/tracing"
)

var runFlags struct {
	listenAddress string
	upstream      string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the relay server",
	Long: `Start the relay server with the specified configuration.

The server accepts GET requests on the stream path and relays the upstream
price stream byte for byte. When the journal is enabled every relayed stream
is recorded and pruned on the retention schedule.

Examples:
  # Start with defaults
  pricerelay run

  # Start with a config file
  pricerelay run --config /etc/pricerelay/config.yaml

  # Override listen address and upstream
  pricerelay run --listen 0.0.0.0:8080 --upstream http://feed:17020/v1

  # Validate config without starting the server
  pricerelay run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.upstream, "upstream", "", "override upstream feed base URL")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if runFlags.listenAddress != "" {
		cfg.Relay.ListenAddress = runFlags.listenAddress
	}
	if runFlags.upstream != "" {
		cfg.Upstream.BaseURL = runFlags.upstream
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if err := config.Validate(cfg); err != nil {
		return cli.NewConfigError("", err.Error())
	}

	logger, err := setupLogging(cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if runFlags.dryRun {
		fmt.Fprintln(out, "✓ Configuration valid")
		return nil
	}

	printBanner(cmd, cfg)
	publishBuildInfo()

	ctx, stop := cli.SetupSignalHandler()
	defer stop()

	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)

	tracer, err := tracing.New(&cfg.Telemetry.Tracing, Version)
	if err != nil {
		return cli.NewCommandError("run", fmt.Errorf("failed to initialize tracing: %w", err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("tracer shutdown failed", "error", err)
		}
	}()

	opts := []server.Option{
		server.WithMetrics(collector),
		server.WithTracer(tracer),
	}

	if cfg.Journal.Enabled {
		slog.Info("initializing session journal", "backend", cfg.Journal.Backend)

		store, err := storage.New(ctx, cfg.Journal)
		if err != nil {
			return cli.NewCommandError("run", fmt.Errorf("failed to open journal: %w", err))
		}
		defer store.Close()

		rec := recorder.New(store, cfg.Journal.Recorder, collector)
		defer rec.Close()

		pruner := retention.NewPruner(store, cfg.Journal.Retention, collector)
		if err := pruner.Start(ctx); err != nil {
			slog.Warn("failed to start retention scheduler", "error", err)
		} else {
			defer pruner.Stop()
			if next := pruner.NextPruning(); next != nil {
				slog.Debug("journal retention scheduler started", "next_pruning", next)
			}
		}

		opts = append(opts, server.WithRecorder(rec), server.WithStorage(store))
		fmt.Fprintf(out, "✓ Session journal initialized (%s)\n", store.Backend())
	}

	srv := server.NewServer(cfg, opts...)
	if err := srv.Listen(); err != nil {
		return cli.NewCommandError("run", err)
	}

	addr := srv.Addr().String()
	fmt.Fprintln(out)
	fmt.Fprintf(out, "✓ Relay listening on http://%s%s\n", addr, cfg.Relay.StreamPath)
	if cfg.Telemetry.Health.Enabled {
		fmt.Fprintf(out, "✓ Health endpoint: http://%s%s\n", addr, cfg.Telemetry.Health.LivenessPath)
	}
	if cfg.Telemetry.Metrics.Enabled {
		fmt.Fprintf(out, "✓ Metrics endpoint: http://%s%s\n", addr, cfg.Telemetry.Metrics.Path)
	}
	fmt.Fprintln(out, "\nPress Ctrl+C to stop")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(gctx)
	})
	if cfgFile != "" {
		g.Go(func() error {
			return watchConfig(gctx, logger)
		})
	}

	if err := g.Wait(); err != nil {
		return cli.NewCommandError("run", err)
	}
	fmt.Fprintln(out, "✓ Server stopped")
	return nil
}

// watchConfig applies log level changes from the config file while the
// server runs. Other settings need a restart.
func watchConfig(ctx context.Context, logger *logging.Logger) error {
	w, err := config.NewWatcher(cfgFile, 0, slog.Default())
	if err != nil {
		slog.Warn("config watcher unavailable", "error", err)
		return nil
	}
	defer w.Stop()

	return w.Watch(ctx, func(cfg *config.Config) {
		if err := logger.SetLevel(cfg.Telemetry.Logging.Level); err != nil {
			slog.Warn("ignoring reloaded log level", "error", err)
			return
		}
		slog.Info("log level updated", "level", logger.Level().String())
	})
}

func printBanner(cmd *cobra.Command, cfg *config.Config) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Pricerelay v%s\n", Version)
	if cfgFile != "" {
		fmt.Fprintf(out, "Loading configuration from: %s\n", cfgFile)
	}
	fmt.Fprintln(out, "✓ Configuration loaded")
	fmt.Fprintf(out, "✓ Upstream: %s%s\n", cfg.Upstream.BaseURL, cfg.Upstream.StreamPath)

	slog.Debug("relay configured",
		"stream_path", cfg.Relay.StreamPath,
		"journal_enabled", cfg.Journal.Enabled,
		"tracing_enabled", cfg.Telemetry.Tracing.Enabled,
	)
}
