package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"mercator-hq/pricerelay/pkg/config"
	"mercator-hq/pricerelay/pkg/proxy"
	"mercator-hq/pricerelay/pkg/proxy/handlers"
	"mercator-hq/pricerelay/pkg/proxy/middleware"
	"mercator-hq/pricerelay/pkg/telemetry/health"
	"mercator-hq/pricerelay/pkg/telemetry/metrics"
	"mercator-hq/pricerelay/pkg/telemetry/tracing"
)

// Build information reported by the version endpoint.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Server is the relay HTTP server.
type Server struct {
	config     *config.Config
	httpServer *http.Server
	listener   net.Listener
	upstream   *proxy.Upstream
	stream     *handlers.StreamHandler
	checker    *health.Checker

	metrics  *metrics.Collector
	tracer   *tracing.Tracer
	recorder handlers.SessionRecorder
	storage  health.Pinger

	shutdownChan chan struct{}
	stopOnce     sync.Once
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics records relay metrics and serves them at the metrics path.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Server) { s.metrics = c }
}

// WithTracer opens a span per relayed stream.
func WithTracer(t *tracing.Tracer) Option {
	return func(s *Server) { s.tracer = t }
}

// WithRecorder journals every relayed stream.
func WithRecorder(r handlers.SessionRecorder) Option {
	return func(s *Server) { s.recorder = r }
}

// WithStorage adds a readiness check pinging the journal storage.
func WithStorage(p health.Pinger) Option {
	return func(s *Server) { s.storage = p }
}

// NewServer creates a relay server from cfg. cfg must have defaults applied.
func NewServer(cfg *config.Config, opts ...Option) *Server {
	s := &Server{
		config:       cfg,
		shutdownChan: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.upstream = proxy.NewUpstream(cfg.Upstream)
	s.stream = handlers.NewStreamHandler(s.upstream,
		handlers.WithMetrics(s.metrics),
		handlers.WithTracer(s.tracer),
		handlers.WithRecorder(s.recorder),
		handlers.WithBufferSize(cfg.Upstream.ReadBufferSize),
	)

	s.checker = health.New(cfg.Telemetry.Health.CheckTimeout)
	s.checker.RegisterCheck("upstream", health.UpstreamCheck(cfg.Upstream.BaseURL))
	if s.storage != nil {
		s.checker.RegisterCheck("journal", health.PingCheck(s.storage))
	}

	return s
}

// Listen binds the configured address. Start calls it when the server is not
// bound yet; calling it first lets callers learn the address of ":0".
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.config.Relay.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Relay.ListenAddress, err)
	}
	s.listener = ln
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start serves until ctx is cancelled, Stop is called or the listener fails,
// then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true

	s.httpServer = &http.Server{
		Handler:        s.setupRoutes(),
		ReadTimeout:    s.config.Relay.ReadTimeout,
		WriteTimeout:   s.config.Relay.WriteTimeout,
		IdleTimeout:    s.config.Relay.IdleTimeout,
		MaxHeaderBytes: s.config.Relay.MaxHeaderBytes,
	}
	httpServer, ln := s.httpServer, s.listener
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		slog.Info("starting relay server",
			"address", ln.Addr().String(),
			"stream_path", s.config.Relay.StreamPath,
			"upstream", s.upstream.URL(""),
		)

		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	case <-s.shutdownChan:
		slog.Info("shutdown requested")
		return s.Shutdown(context.Background())
	}
}

// Stop asks a running Start to shut down.
func (s *Server) Stop() {
	s.stopOnce.Do(func() { close(s.shutdownChan) })
}

// Shutdown ends live streams, then gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		slog.Info("initiating graceful shutdown", "timeout", s.config.Relay.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Relay.ShutdownTimeout)
		defer cancel()

		// Shutdown waits for handlers, and stream handlers only return once
		// their stream ends.
		s.stream.Close()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("error during server shutdown", "error", err)
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}
		s.upstream.CloseIdleConnections()

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		slog.Info("relay server stopped")
	})

	return shutdownErr
}

// setupRoutes configures HTTP routes and the middleware chain. The stream
// route bypasses the timeout middleware.
func (s *Server) setupRoutes() http.Handler {
	api := http.NewServeMux()
	if s.config.Telemetry.Health.Enabled {
		health.Mount(api, s.config.Telemetry.Health, s.checker, Version, Commit, BuildTime)
	}
	if s.config.Telemetry.Metrics.Enabled && s.metrics != nil {
		api.Handle(s.config.Telemetry.Metrics.Path, s.metrics.Handler())
	}
	api.Handle("/", handlers.NotFoundHandler())

	mux := http.NewServeMux()
	mux.Handle(s.config.Relay.StreamPath, s.stream)
	mux.Handle("/", middleware.TimeoutMiddleware(s.config.Relay.WriteTimeout)(api))

	var handler http.Handler = mux

	handler = middleware.CORSMiddleware(s.config.Relay.CORS)(handler)
	handler = tracing.HTTPMiddleware(handler)
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.RequestIDMiddleware(handler)

	// Recovery middleware (outermost)
	handler = middleware.RecoveryMiddleware(handler)

	return handler
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler returns the configured HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

// Health runs the readiness checks.
func (s *Server) Health(ctx context.Context) error {
	if !s.IsRunning() {
		return fmt.Errorf("server is not running")
	}

	status := s.checker.CheckReadiness(ctx)
	for name, result := range status.Checks {
		if result.Status != "ok" {
			return fmt.Errorf("%s check failed: %s", name, result.Message)
		}
	}
	return nil
}
