package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mercator-hq/pricerelay/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func testConfig() *config.MetricsConfig {
	return &config.MetricsConfig{
		Enabled:               true,
		Namespace:             "test",
		Subsystem:             "relay",
		StreamDurationBuckets: []float64{1, 10, 60},
	}
}

func TestCollector_NewCollector(t *testing.T) {
	cfg := testConfig()
	registry := prometheus.NewRegistry()

	collector := NewCollector(cfg, registry)

	if collector.config != cfg {
		t.Error("collector config not set")
	}
	if collector.Registry() != registry {
		t.Error("collector registry not set")
	}
}

func TestCollector_Defaults(t *testing.T) {
	cfg := &config.MetricsConfig{Enabled: true}
	NewCollector(cfg, nil)

	if cfg.Namespace != "mercator" || cfg.Subsystem != "pricerelay" {
		t.Errorf("namespace/subsystem = %s/%s", cfg.Namespace, cfg.Subsystem)
	}
	if len(cfg.StreamDurationBuckets) == 0 {
		t.Error("stream duration buckets not defaulted")
	}
}

func TestCollector_StreamLifecycle(t *testing.T) {
	c := NewCollector(testConfig(), prometheus.NewRegistry())

	c.StreamOpened()
	c.StreamOpened()
	if got := testutil.ToFloat64(c.relay.streamsActive); got != 2 {
		t.Errorf("streams_active = %v, want 2", got)
	}

	c.StreamClosed("completed", 3*time.Second, 1024, 4)
	c.StreamClosed("client_disconnected", time.Second, 10, 1)
	c.StreamRejected("upstream_unavailable")

	if got := testutil.ToFloat64(c.relay.streamsActive); got != 0 {
		t.Errorf("streams_active = %v, want 0", got)
	}
	if got := testutil.ToFloat64(c.relay.bytesRelayed); got != 1034 {
		t.Errorf("bytes_relayed_total = %v", got)
	}
	if got := testutil.ToFloat64(c.relay.chunksRelayed); got != 5 {
		t.Errorf("chunks_relayed_total = %v", got)
	}
	for outcome, want := range map[string]float64{
		"completed":            1,
		"client_disconnected":     1,
		"upstream_unavailable": 1,
	} {
		if got := testutil.ToFloat64(c.relay.streamsTotal.WithLabelValues(outcome)); got != want {
			t.Errorf("streams_total{%s} = %v, want %v", outcome, got, want)
		}
	}
	if n := testutil.CollectAndCount(c.relay.streamDuration); n != 1 {
		t.Errorf("stream_duration_seconds series = %d", n)
	}
}

func TestCollector_Cancellations(t *testing.T) {
	c := NewCollector(testConfig(), prometheus.NewRegistry())

	c.RecordCancellation("client_disconnected")
	c.RecordCancellation("client_disconnected")
	c.RecordCancellation("upstream_closed")
	c.RecordUpstreamConnect("200", 20*time.Millisecond)

	if got := testutil.ToFloat64(c.relay.cancellations.WithLabelValues("client_disconnected")); got != 2 {
		t.Errorf("client_disconnected = %v", got)
	}
	if got := testutil.ToFloat64(c.relay.cancellations.WithLabelValues("upstream_closed")); got != 1 {
		t.Errorf("upstream_closed = %v", got)
	}
	if n := testutil.CollectAndCount(c.relay.upstreamConnect); n != 1 {
		t.Errorf("upstream_connect_seconds series = %d", n)
	}
}

func TestCollector_ClientMetrics(t *testing.T) {
	c := NewCollector(testConfig(), prometheus.NewRegistry())

	c.RecordStateTransition("connecting")
	c.RecordStateTransition("connected")
	c.RecordStateTransition("disconnected")
	c.RecordReconnectAttempt()
	c.RecordClientMessage("price")
	c.RecordClientMessage("sentinel")
	c.RecordClientMessage("price")

	c.SetRetryArmed(true)
	if got := testutil.ToFloat64(c.client.retryArmed); got != 1 {
		t.Errorf("retry armed = %v", got)
	}
	c.SetRetryArmed(false)
	if got := testutil.ToFloat64(c.client.retryArmed); got != 0 {
		t.Errorf("retry armed = %v", got)
	}

	if got := testutil.ToFloat64(c.client.messages.WithLabelValues("price")); got != 2 {
		t.Errorf("messages{price} = %v", got)
	}
	if got := testutil.ToFloat64(c.client.reconnects); got != 1 {
		t.Errorf("reconnects = %v", got)
	}
	if n := testutil.CollectAndCount(c.client.transitions); n != 3 {
		t.Errorf("transitions series = %d", n)
	}
}

func TestCollector_JournalMetrics(t *testing.T) {
	c := NewCollector(testConfig(), prometheus.NewRegistry())

	c.RecordJournalWrite("sqlite", "ok", time.Millisecond)
	c.RecordJournalWrite("sqlite", "error", time.Millisecond)
	c.RecordJournalDrop()
	c.RecordJournalPruned(7)

	if got := testutil.ToFloat64(c.journal.writes.WithLabelValues("sqlite", "ok")); got != 1 {
		t.Errorf("writes{ok} = %v", got)
	}
	if got := testutil.ToFloat64(c.journal.dropped); got != 1 {
		t.Errorf("dropped = %v", got)
	}
	if got := testutil.ToFloat64(c.journal.pruned); got != 7 {
		t.Errorf("pruned = %v", got)
	}
}

func TestCollector_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	c := NewCollector(cfg, prometheus.NewRegistry())

	c.StreamOpened()
	c.RecordReconnectAttempt()
	c.RecordJournalDrop()

	if got := testutil.ToFloat64(c.relay.streamsActive); got != 0 {
		t.Errorf("streams_active = %v, want 0 when disabled", got)
	}
	if got := testutil.ToFloat64(c.client.reconnects); got != 0 {
		t.Errorf("reconnects = %v, want 0 when disabled", got)
	}
}

func TestCollector_NilIsNoop(t *testing.T) {
	var c *Collector
	c.StreamOpened()
	c.StreamClosed("completed", time.Second, 1, 1)
	c.RecordStateTransition("connected")
	c.SetRetryArmed(true)
	c.RecordJournalWrite("memory", "ok", 0)
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector(testConfig(), prometheus.NewRegistry())
	c.StreamOpened()

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "test_relay_streams_active 1") {
		t.Errorf("scrape output missing streams_active:\n%s", rec.Body.String())
	}
}
