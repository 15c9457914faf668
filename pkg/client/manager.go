package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync/atomic"
	"time"

	"mercator-hq/pricerelay/pkg/config"
	"mercator-hq/pricerelay/pkg/feed"
	"mercator-hq/pricerelay/pkg/sse"
	"mercator-hq/pricerelay/pkg/telemetry/metrics"
)

// ErrAlreadyRunning is returned by Run when the manager was already started.
var ErrAlreadyRunning = errors.New("client: manager already running")

// Subscription is an open stream of message events.
type Subscription interface {
	Next() (sse.Event, error)
	Close() error
}

// Dialer opens subscriptions to the relay.
type Dialer interface {
	Dial(ctx context.Context, url, lastEventID string) (Subscription, error)
}

// SSEDialer adapts *sse.Dialer to Dialer.
type SSEDialer struct {
	*sse.Dialer
}

// Dial implements Dialer.
func (d SSEDialer) Dial(ctx context.Context, target, lastEventID string) (Subscription, error) {
	stream, err := d.Dialer.Dial(ctx, target, lastEventID)
	if err != nil {
		return nil, err
	}
	return stream, nil
}

// Option configures a Manager.
type Option func(*Manager)

// WithDialer replaces the default SSE dialer.
func WithDialer(d Dialer) Option {
	return func(m *Manager) {
		m.dialer = d
	}
}

// WithMetrics records state transitions, reconnects and messages.
func WithMetrics(c *metrics.Collector) Option {
	return func(m *Manager) {
		m.metrics = c
	}
}

// WithLogger sets the manager logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// WithClock sets the time source used for the resume window.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

type eventKind int

const (
	eventOpen eventKind = iota
	eventMessage
	eventError
	eventTick
	eventFlashClear
)

// event is posted to the loop by subscription readers and timers. sub, retry
// and flash identify the source so events from retired sources are ignored.
type event struct {
	kind  eventKind
	sub   uint64
	retry uint64
	flash uint64

	data        string
	lastEventID string
	err         error
	dir         feed.Direction
}

type subscription struct {
	id     uint64
	cancel context.CancelFunc
}

type retryTicker struct {
	gen    uint64
	ticker *time.Ticker
	stop   chan struct{}
}

// Manager maintains a subscription to the relay and renders what it
// receives. Create one with New and start it with Run.
type Manager struct {
	cfg      config.ClientConfig
	base     *url.URL
	renderer Renderer
	dialer   Dialer
	metrics  *metrics.Collector
	logger   *slog.Logger
	now      func() time.Time

	events chan event
	done   chan struct{}

	// Owned by the Run goroutine.
	state       State
	sub         *subscription
	subSeq      uint64
	retry       *retryTicker
	retrySeq    uint64
	tracker     feed.Tracker
	lastEventID string
	flashSeq    uint64
	flashes     map[uint64]*time.Timer

	// Mirrors for observers outside the loop.
	running    atomic.Bool
	curState   atomic.Int32
	retryArmed atomic.Bool
	armCount   atomic.Int64
}

// New creates a manager for cfg. Zero durations take the package defaults.
func New(cfg config.ClientConfig, renderer Renderer, opts ...Option) (*Manager, error) {
	if renderer == nil {
		return nil, errors.New("client: renderer is required")
	}
	if cfg.RelayURL == "" {
		cfg.RelayURL = config.DefaultClientRelayURL
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = config.DefaultClientRetryInterval
	}
	if cfg.FlashDuration <= 0 {
		cfg.FlashDuration = config.DefaultClientFlashDuration
	}

	base, err := url.Parse(cfg.RelayURL)
	if err != nil {
		return nil, fmt.Errorf("client: invalid relay url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("client: relay url must be http or https, got %q", cfg.RelayURL)
	}

	m := &Manager{
		cfg:      cfg,
		base:     base,
		renderer: renderer,
		logger:   slog.Default().With("component", "client.manager"),
		now:      time.Now,
		events:   make(chan event, 64),
		done:     make(chan struct{}),
		flashes:  make(map[uint64]*time.Timer),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.dialer == nil {
		m.dialer = SSEDialer{&sse.Dialer{MaxFrameBytes: cfg.MaxFrameBytes}}
	}
	return m, nil
}

// Run connects and processes events until ctx is cancelled, then tears the
// manager down: the open subscription is closed, the retry ticker and pending
// flash clears are stopped, and no renderer call follows. A manager runs
// once.
func (m *Manager) Run(ctx context.Context) error {
	if !m.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer m.teardown()

	m.connect(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-m.events:
			m.handle(ctx, ev)
		}
	}
}

// State returns the current connection state.
func (m *Manager) State() State {
	return State(m.curState.Load())
}

// RetryArmed reports whether the retry ticker is armed.
func (m *Manager) RetryArmed() bool {
	return m.retryArmed.Load()
}

// RetryArmCount returns how many times a retry ticker has been armed.
func (m *Manager) RetryArmCount() int64 {
	return m.armCount.Load()
}

func (m *Manager) handle(ctx context.Context, ev event) {
	switch ev.kind {
	case eventOpen:
		if !m.current(ev.sub) {
			return
		}
		m.setState(Connected)
		m.stopRetry()

	case eventError:
		if !m.current(ev.sub) {
			return
		}
		m.closeSub()
		m.logger.Warn("subscription failed", "error", ev.err, "retry_in", m.cfg.RetryInterval)
		m.setState(Disconnected)
		m.armRetry()

	case eventMessage:
		if !m.current(ev.sub) {
			return
		}
		if ev.lastEventID != "" {
			m.lastEventID = ev.lastEventID
		}
		m.handleMessage(ev.data)

	case eventTick:
		if m.retry == nil || m.retry.gen != ev.retry {
			return
		}
		m.metrics.RecordReconnectAttempt()
		m.connect(ctx)

	case eventFlashClear:
		if _, ok := m.flashes[ev.flash]; !ok {
			return
		}
		delete(m.flashes, ev.flash)
		m.renderer.RenderFlash(ev.dir, false)
	}
}

func (m *Manager) current(id uint64) bool {
	return m.sub != nil && m.sub.id == id
}

func (m *Manager) handleMessage(data string) {
	if feed.IsSentinel(data) {
		m.metrics.RecordClientMessage("sentinel")
		return
	}

	msg, err := feed.Decode(data)
	if err != nil {
		m.metrics.RecordClientMessage("malformed")
		m.logger.Warn("dropping message", "error", err)
		return
	}
	if msg.Kind != feed.KindPrice {
		return
	}

	m.metrics.RecordClientMessage("price")
	sample := m.tracker.Observe(msg)
	m.renderer.RenderPrice(sample)
	m.flash(sample.Direction)
}

// flash sets the direction flash and schedules its clear. Earlier clears
// still pending are left alone; the last one to fire decides the final value.
func (m *Manager) flash(dir feed.Direction) {
	m.flashSeq++
	id := m.flashSeq
	m.renderer.RenderFlash(dir, true)
	m.flashes[id] = time.AfterFunc(m.cfg.FlashDuration, func() {
		m.post(event{kind: eventFlashClear, flash: id, dir: dir})
	})
}

// connect retires the current subscription and opens a new one.
func (m *Manager) connect(ctx context.Context) {
	m.closeSub()

	m.subSeq++
	subCtx, cancel := context.WithCancel(ctx)
	m.sub = &subscription{id: m.subSeq, cancel: cancel}
	m.setState(Connecting)

	go m.read(subCtx, m.subSeq, m.streamURL(), m.lastEventID)
}

func (m *Manager) closeSub() {
	if m.sub == nil {
		return
	}
	m.sub.cancel()
	m.sub = nil
}

// read runs one subscription and posts its events until it fails or its
// context is cancelled.
func (m *Manager) read(ctx context.Context, id uint64, target, lastEventID string) {
	stream, err := m.dialer.Dial(ctx, target, lastEventID)
	if err != nil {
		if ctx.Err() == nil {
			m.post(event{kind: eventError, sub: id, err: err})
		}
		return
	}
	stop := context.AfterFunc(ctx, func() { _ = stream.Close() })
	defer func() {
		stop()
		_ = stream.Close()
	}()

	m.post(event{kind: eventOpen, sub: id})

	for {
		ev, err := stream.Next()
		if err != nil {
			if ctx.Err() == nil {
				m.post(event{kind: eventError, sub: id, err: err})
			}
			return
		}
		m.post(event{kind: eventMessage, sub: id, data: ev.Data, lastEventID: ev.ID})
	}
}

// streamURL adds a since parameter when the last accepted price is inside
// the resume window.
func (m *Manager) streamURL() string {
	if m.cfg.ResumeWindow <= 0 {
		return m.base.String()
	}
	last := m.tracker.LastTimestamp()
	if !last.Valid() || m.now().Sub(last.Time) > m.cfg.ResumeWindow {
		return m.base.String()
	}

	u := *m.base
	q := u.Query()
	q.Set("since", last.Raw)
	u.RawQuery = q.Encode()
	return u.String()
}

// armRetry arms the retry ticker unless one is already armed.
func (m *Manager) armRetry() {
	if m.retry != nil {
		return
	}

	m.retrySeq++
	r := &retryTicker{
		gen:    m.retrySeq,
		ticker: time.NewTicker(m.cfg.RetryInterval),
		stop:   make(chan struct{}),
	}
	m.retry = r

	go func() {
		for {
			select {
			case <-r.ticker.C:
				m.post(event{kind: eventTick, retry: r.gen})
			case <-r.stop:
				return
			}
		}
	}()

	m.armCount.Add(1)
	m.retryArmed.Store(true)
	m.metrics.SetRetryArmed(true)
}

func (m *Manager) stopRetry() {
	if m.retry == nil {
		return
	}
	m.retry.ticker.Stop()
	close(m.retry.stop)
	m.retry = nil

	m.retryArmed.Store(false)
	m.metrics.SetRetryArmed(false)
}

func (m *Manager) setState(s State) {
	m.state = s
	m.curState.Store(int32(s))
	m.metrics.RecordStateTransition(s.String())
	m.logger.Debug("state changed", "state", s.String())
	m.renderer.RenderStatus(s, s.Label(m.cfg.RetryInterval))
}

// post delivers ev to the loop, or drops it once the manager is torn down.
func (m *Manager) post(ev event) {
	select {
	case m.events <- ev:
	case <-m.done:
	}
}

func (m *Manager) teardown() {
	m.closeSub()
	m.stopRetry()
	for id, t := range m.flashes {
		t.Stop()
		delete(m.flashes, id)
	}
	close(m.done)
}
