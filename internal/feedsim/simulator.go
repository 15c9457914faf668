package feedsim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"mercator-hq/pricerelay/pkg/config"
)

const subscriberBuffer = 16

// ErrSinceTooOld is returned for a since parameter older than the buffer TTL.
var ErrSinceTooOld = errors.New("'since' timestamp is too old (exceeds buffer TTL)")

// Simulator is a stand-in for the upstream price feed. It generates prices
// with a random walk and serves them as an SSE stream.
type Simulator struct {
	cfg    config.FeedConfig
	walk   *Walk
	buffer *Buffer[Price]
	hub    *hub
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithRand makes the walk deterministic.
func WithRand(rng *rand.Rand) Option {
	return func(s *Simulator) {
		s.walk.rng = rng
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Simulator) {
		s.now = now
	}
}

// New creates a simulator from cfg.
func New(cfg config.FeedConfig, opts ...Option) (*Simulator, error) {
	start, err := decimal.NewFromString(cfg.StartPrice)
	if err != nil {
		return nil, fmt.Errorf("invalid start price %q: %w", cfg.StartPrice, err)
	}
	volatility, err := decimal.NewFromString(cfg.Volatility)
	if err != nil {
		return nil, fmt.Errorf("invalid volatility %q: %w", cfg.Volatility, err)
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = config.DefaultFeedTickInterval
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = config.DefaultFeedPingInterval
	}
	if cfg.BufferTTL <= 0 {
		cfg.BufferTTL = config.DefaultFeedBufferTTL
	}

	s := &Simulator{
		cfg:    cfg,
		walk:   NewWalk(start, volatility, nil),
		buffer: NewBuffer[Price](cfg.BufferTTL, cfg.BufferSize),
		hub:    newHub(),
		now:    time.Now,
		logger: slog.Default().With("component", "feedsim"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run generates a price every tick interval and trims the replay buffer until
// ctx is done.
func (s *Simulator) Run(ctx context.Context) error {
	go s.buffer.RunTrimmer(ctx, s.cfg.BufferTTL/10+time.Second)

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	s.logger.Info("feed simulator started",
		"symbol", s.cfg.Symbol,
		"start_price", s.walk.Current().String(),
		"tick_interval", s.cfg.TickInterval,
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("feed simulator stopped")
			return nil
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Tick generates one price. Unchanged prices are not broadcast. It reports
// whether a price was published.
func (s *Simulator) Tick() bool {
	return s.Publish(s.walk.Next())
}

// Publish broadcasts value as the current price unless it equals the last
// published price.
func (s *Simulator) Publish(value decimal.Decimal) bool {
	if last, ok := s.buffer.Last(); ok && last.Value.Equal(value) {
		s.logger.Debug("skipping broadcast for unchanged price", "price", value.String())
		return false
	}

	p := Price{Symbol: s.cfg.Symbol, At: s.now().UTC().Truncate(time.Second), Value: value}
	s.buffer.Add(p)
	n := s.hub.broadcast(p)
	s.logger.Debug("price broadcast", "price", value.String(), "subscribers", n)
	return true
}

// Subscribers returns the number of connected streams.
func (s *Simulator) Subscribers() int {
	return s.hub.len()
}

// ServeHTTP streams prices. The stream opens with a ": connected" comment,
// replays buffered prices newer than ?since= when given, sends the latest
// price otherwise, then relays every new price and a ": ping" comment each
// ping interval.
func (s *Simulator) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	since, err := s.parseSince(r)
	if err != nil {
		slog.WarnContext(r.Context(), "rejecting price stream request", "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeAndFlush(w, rc, ": connected\n\n"); err != nil {
		return
	}

	sub := s.hub.subscribe(subscriberBuffer)
	defer s.hub.unsubscribe(sub)

	ctx := r.Context()
	slog.InfoContext(ctx, "client connected to price stream", "since", since)

	replayed := 0
	if !since.IsZero() {
		for _, p := range s.buffer.Since(since) {
			if err := sendPrice(w, rc, p); err != nil {
				return
			}
			replayed++
		}
	}
	if replayed == 0 {
		if last, ok := s.buffer.Last(); ok {
			if err := sendPrice(w, rc, last); err != nil {
				return
			}
		}
	}

	ping := time.NewTicker(s.cfg.PingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "client disconnected from price stream")
			return
		case <-ping.C:
			if err := writeAndFlush(w, rc, ": ping\n\n"); err != nil {
				slog.InfoContext(ctx, "client disconnected from price stream", "error", err)
				return
			}
		case p := <-sub:
			if err := sendPrice(w, rc, p); err != nil {
				slog.InfoContext(ctx, "client disconnected from price stream", "error", err)
				return
			}
		}
	}
}

// parseSince reads ?since=. It must be RFC3339 and within the buffer TTL.
func (s *Simulator) parseSince(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("since")
	if raw == "" {
		return time.Time{}, nil
	}

	since, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid 'since' timestamp format: %w", err)
	}
	if since.Before(s.now().Add(-s.buffer.TTL())) {
		return time.Time{}, ErrSinceTooOld
	}
	return since, nil
}

func sendPrice(w io.Writer, rc *http.ResponseController, p Price) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return writeAndFlush(w, rc, "data: "+string(data)+"\n\n")
}

func writeAndFlush(w io.Writer, rc *http.ResponseController, frame string) error {
	if _, err := io.WriteString(w, frame); err != nil {
		return err
	}
	return rc.Flush()
}
