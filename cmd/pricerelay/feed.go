package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"mercator-hq/pricerelay/internal/feedsim"
	"mercator-hq/pricerelay/pkg/cli"
	"mercator-hq/pricerelay/pkg/proxy/middleware"
)

var feedFlags struct {
	listenAddress string
	symbol        string
	startPrice    string
	tick          time.Duration
}

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Run the price feed simulator",
	Long: `Serve a simulated upstream price feed for local development.

The feed emits a ": connected" comment on subscribe, a JSON price frame for
every change of a random walk and a ": ping" comment every ping interval.
Clients may pass ?since=<RFC3339> to replay buffered prices.

Examples:
  # Serve on the default upstream address
  pricerelay feed

  # Faster ticks for a different symbol
  pricerelay feed --symbol ETH-USD --start-price 3000 --tick 200ms`,
	RunE: runFeed,
}

func init() {
	rootCmd.AddCommand(feedCmd)

	feedCmd.Flags().StringVarP(&feedFlags.listenAddress, "listen", "l", "", "override feed listen address")
	feedCmd.Flags().StringVar(&feedFlags.symbol, "symbol", "", "override instrument symbol")
	feedCmd.Flags().StringVar(&feedFlags.startPrice, "start-price", "", "override starting price")
	feedCmd.Flags().DurationVar(&feedFlags.tick, "tick", 0, "override tick interval")
}

func runFeed(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	feedCfg := cfg.Feed
	if feedFlags.listenAddress != "" {
		feedCfg.ListenAddress = feedFlags.listenAddress
	}
	if feedFlags.symbol != "" {
		feedCfg.Symbol = feedFlags.symbol
	}
	if feedFlags.startPrice != "" {
		feedCfg.StartPrice = feedFlags.startPrice
	}
	if feedFlags.tick > 0 {
		feedCfg.TickInterval = feedFlags.tick
	}

	if _, err := setupLogging(cfg); err != nil {
		return err
	}

	sim, err := feedsim.New(feedCfg)
	if err != nil {
		return cli.NewConfigError("feed", err.Error())
	}

	ln, err := net.Listen("tcp", feedCfg.ListenAddress)
	if err != nil {
		return cli.NewCommandError("feed", err)
	}

	mux := http.NewServeMux()
	mux.Handle(feedCfg.Path, sim)
	srv := &http.Server{
		Handler:           middleware.RecoveryMiddleware(middleware.LoggingMiddleware(mux)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Feed serving %s on http://%s%s\n", feedCfg.Symbol, ln.Addr(), feedCfg.Path)

	ctx, stop := cli.SetupSignalHandler()
	defer stop()

	if err := serveFeed(ctx, sim, srv, ln, cfg.Relay.ShutdownTimeout); err != nil {
		return cli.NewCommandError("feed", err)
	}
	return nil
}

// serveFeed runs the simulator and its HTTP server until ctx is done.
func serveFeed(ctx context.Context, sim *feedsim.Simulator, srv *http.Server, ln net.Listener, shutdownTimeout time.Duration) error {
	// Subscribers are held open until their context ends; tie them to ctx so
	// Shutdown does not wait on them.
	srv.BaseContext = func(net.Listener) context.Context { return ctx }

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sim.Run(gctx)
	})
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
		slog.Info("stopping feed server")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
