package health

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mercator-hq/pricerelay/pkg/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name            string
		timeout         time.Duration
		expectedTimeout time.Duration
	}{
		{name: "default timeout", timeout: 0, expectedTimeout: 5 * time.Second},
		{name: "custom timeout", timeout: 10 * time.Second, expectedTimeout: 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := New(tt.timeout)
			if checker.checkTimeout != tt.expectedTimeout {
				t.Errorf("expected timeout %v, got %v", tt.expectedTimeout, checker.checkTimeout)
			}
			if len(checker.ListChecks()) != 0 {
				t.Error("expected no checks")
			}
		})
	}
}

func TestCheckReadiness(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]CheckFunc
		wantStatus string
	}{
		{
			name:       "no checks",
			wantStatus: "ready",
		},
		{
			name: "all healthy",
			checks: map[string]CheckFunc{
				"upstream": func(ctx context.Context) error { return nil },
				"journal":  func(ctx context.Context) error { return nil },
			},
			wantStatus: "ready",
		},
		{
			name: "one failing",
			checks: map[string]CheckFunc{
				"upstream": func(ctx context.Context) error { return errors.New("refused") },
				"journal":  func(ctx context.Context) error { return nil },
			},
			wantStatus: "degraded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := New(time.Second)
			for name, check := range tt.checks {
				checker.RegisterCheck(name, check)
			}

			status := checker.CheckReadiness(context.Background())
			if status.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", status.Status, tt.wantStatus)
			}
			if len(status.Checks) != len(tt.checks) {
				t.Errorf("got %d results, want %d", len(status.Checks), len(tt.checks))
			}
		})
	}
}

func TestCheckReadiness_Timeout(t *testing.T) {
	checker := New(20 * time.Millisecond)
	checker.RegisterCheck("slow", func(ctx context.Context) error {
		time.Sleep(time.Second)
		return nil
	})

	status := checker.CheckReadiness(context.Background())
	result := status.Checks["slow"]
	if result.Status != "unhealthy" || result.Message != "health check timeout" {
		t.Errorf("result = %+v", result)
	}
}

func TestUnregisterCheck(t *testing.T) {
	checker := New(time.Second)
	checker.RegisterCheck("journal", func(ctx context.Context) error { return errors.New("down") })
	checker.UnregisterCheck("journal")

	if status := checker.CheckReadiness(context.Background()); status.Status != "ready" {
		t.Errorf("status = %q", status.Status)
	}
}

func TestReadinessHandler(t *testing.T) {
	checker := New(time.Second)
	checker.RegisterCheck("upstream", func(ctx context.Context) error { return errors.New("refused") })

	rec := httptest.NewRecorder()
	checker.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status code = %d", rec.Code)
	}
	var body HealthStatus
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Checks["upstream"].Message != "refused" {
		t.Errorf("checks = %+v", body.Checks)
	}
}

func TestHandlers_Methods(t *testing.T) {
	checker := New(time.Second)
	handlers := map[string]http.HandlerFunc{
		"liveness":  checker.LivenessHandler(),
		"readiness": checker.ReadinessHandler(),
		"version":   VersionHandler("1.0.0", "abc", "now"),
	}

	for name, h := range handlers {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h(rec, httptest.NewRequest(http.MethodPost, "/", nil))
			if rec.Code != http.StatusMethodNotAllowed {
				t.Errorf("POST status = %d", rec.Code)
			}

			rec = httptest.NewRecorder()
			h(rec, httptest.NewRequest(http.MethodHead, "/", nil))
			if rec.Code != http.StatusOK {
				t.Errorf("HEAD status = %d", rec.Code)
			}
			if rec.Body.Len() != 0 {
				t.Error("HEAD response has a body")
			}
		})
	}
}

func TestMount(t *testing.T) {
	mux := http.NewServeMux()
	cfg := config.HealthConfig{LivenessPath: "/health", ReadinessPath: "/ready", VersionPath: "/version"}
	Mount(mux, cfg, New(time.Second), "1.2.3", "deadbeef", "today")

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/version", nil))

	var info VersionInfo
	if err := json.NewDecoder(rec.Body).Decode(&info); err != nil {
		t.Fatal(err)
	}
	if info.Version != "1.2.3" || info.Commit != "deadbeef" || info.GoVersion == "" {
		t.Errorf("version info = %+v", info)
	}

	for _, path := range []string{"/health", "/ready"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d", path, rec.Code)
		}
	}
}

func TestUpstreamCheck(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()

	ok := UpstreamCheck("http://" + addr + "/v1")
	if err := ok(context.Background()); err != nil {
		t.Errorf("reachable upstream: %v", err)
	}

	ln.Close()
	if err := ok(context.Background()); err == nil {
		t.Error("expected error for closed listener")
	}

	if err := UpstreamCheck("://bad")(context.Background()); err == nil {
		t.Error("expected error for invalid URL")
	}
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(ctx context.Context) error { return p.err }

func TestPingCheck(t *testing.T) {
	if err := PingCheck(fakePinger{})(context.Background()); err != nil {
		t.Error(err)
	}
	want := errors.New("locked")
	if err := PingCheck(fakePinger{err: want})(context.Background()); !errors.Is(err, want) {
		t.Errorf("err = %v", err)
	}
}
