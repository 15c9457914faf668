package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"mercator-hq/pricerelay/pkg/cli"
	"mercator-hq/pricerelay/pkg/client"
	"mercator-hq/pricerelay/pkg/feed"
	"mercator-hq/pricerelay/pkg/telemetry/metrics"
)

var watchFlags struct {
	url         string
	retry       time.Duration
	resume      time.Duration
	noColor     bool
	metricsAddr string
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the relay stream from the terminal",
	Long: `Connect to the relay and print every accepted price with its direction.

The connection is retried at a fixed interval after any transport error until
it opens again. Liveness sentinels and malformed messages are not printed.

Examples:
  # Follow the local relay
  pricerelay watch

  # Follow a remote relay, retrying every 5s and resuming within a minute
  pricerelay watch --url https://relay.example.com/stream --retry 5s --resume 1m

  # Expose connection metrics for scraping
  pricerelay watch --metrics-listen 127.0.0.1:9464`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVar(&watchFlags.url, "url", "", "relay stream URL (overrides client.relay_url)")
	watchCmd.Flags().DurationVar(&watchFlags.retry, "retry", 0, "reconnect interval (overrides client.retry_interval)")
	watchCmd.Flags().DurationVar(&watchFlags.resume, "resume", 0, "resume window (overrides client.resume_window)")
	watchCmd.Flags().BoolVar(&watchFlags.noColor, "no-color", false, "disable ANSI colors")
	watchCmd.Flags().StringVar(&watchFlags.metricsAddr, "metrics-listen", "", "serve client metrics on this address")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	clientCfg := cfg.Client
	if watchFlags.url != "" {
		clientCfg.RelayURL = watchFlags.url
	}
	if watchFlags.retry > 0 {
		clientCfg.RetryInterval = watchFlags.retry
	}
	if watchFlags.resume > 0 {
		clientCfg.ResumeWindow = watchFlags.resume
	}

	if _, err := setupLogging(cfg); err != nil {
		return err
	}

	metricsCfg := cfg.Telemetry.Metrics
	if watchFlags.metricsAddr != "" {
		metricsCfg.Enabled = true
	}
	collector := metrics.NewCollector(&metricsCfg, nil)

	renderer := newTerminalRenderer(cmd.OutOrStdout(), !watchFlags.noColor)
	m, err := client.New(clientCfg, renderer, client.WithMetrics(collector))
	if err != nil {
		return cli.NewConfigError("client.relay_url", err.Error())
	}

	var metricsSrv *http.Server
	var ln net.Listener
	if watchFlags.metricsAddr != "" {
		ln, err = net.Listen("tcp", watchFlags.metricsAddr)
		if err != nil {
			return cli.NewCommandError("watch", err)
		}
		mux := http.NewServeMux()
		mux.Handle(metricsCfg.Path, collector.Handler())
		metricsSrv = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		slog.Info("serving client metrics", "address", ln.Addr().String(), "path", metricsCfg.Path)
	}

	ctx, stop := cli.SetupSignalHandler()
	defer stop()

	if err := watch(ctx, m, metricsSrv, ln, cfg.Relay.ShutdownTimeout); err != nil {
		return cli.NewCommandError("watch", err)
	}
	return nil
}

// watch runs m until ctx is done, serving metrics on ln when srv is set.
func watch(ctx context.Context, m *client.Manager, srv *http.Server, ln net.Listener, shutdownTimeout time.Duration) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return m.Run(gctx)
	})
	if srv != nil {
		g.Go(func() error {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}
	return g.Wait()
}

const (
	ansiReset = "\x1b[0m"
	ansiGreen = "\x1b[32m"
	ansiRed   = "\x1b[31m"
	ansiDim   = "\x1b[2m"
)

// terminalRenderer prints status changes and prices as lines.
type terminalRenderer struct {
	mu    sync.Mutex
	w     io.Writer
	color bool
}

func newTerminalRenderer(w io.Writer, color bool) *terminalRenderer {
	return &terminalRenderer{w: w, color: color}
}

func (r *terminalRenderer) RenderStatus(state client.State, label string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.w, r.paint(ansiDim, "· "+label))
}

func (r *terminalRenderer) RenderPrice(s feed.PriceSample) {
	r.mu.Lock()
	defer r.mu.Unlock()

	arrow, color := "=", ""
	switch s.Direction {
	case feed.Up:
		arrow, color = "▲", ansiGreen
	case feed.Down:
		arrow, color = "▼", ansiRed
	}

	symbol := s.Symbol
	if symbol == "" {
		symbol = "price"
	}
	line := fmt.Sprintf("%s %s %s", symbol, s.Price.StringFixed(2), arrow)
	if s.Timestamp.Raw != "" {
		line += "  " + r.paint(ansiDim, s.Timestamp.Raw)
	}
	fmt.Fprintln(r.w, r.paint(color, line))
}

// RenderFlash is a no-op: each price line is already colored by direction.
func (r *terminalRenderer) RenderFlash(feed.Direction, bool) {}

func (r *terminalRenderer) paint(code, s string) string {
	if !r.color || code == "" {
		return s
	}
	return code + s + ansiReset
}
