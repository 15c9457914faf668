package proxy

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mercator-hq/pricerelay/pkg/config"
)

func upstreamConfig(baseURL string) config.UpstreamConfig {
	return config.UpstreamConfig{
		BaseURL:         baseURL,
		StreamPath:      "/price-stream",
		ConnectTimeout:  time.Second,
		MaxIdleConns:    4,
		IdleConnTimeout: time.Second,
		ReadBufferSize:  4096,
	}
}

func TestUpstream_URL(t *testing.T) {
	u := NewUpstream(upstreamConfig("http://feed:17020/v1/"))

	tests := []struct {
		rawQuery string
		want     string
	}{
		{"", "http://feed:17020/v1/price-stream"},
		{"since=2024-01-01T00%3A00%3A00Z", "http://feed:17020/v1/price-stream?since=2024-01-01T00%3A00%3A00Z"},
		{"a=1&a=2&b", "http://feed:17020/v1/price-stream?a=1&a=2&b"},
	}
	for _, tt := range tests {
		if got := u.URL(tt.rawQuery); got != tt.want {
			t.Errorf("URL(%q) = %q, want %q", tt.rawQuery, got, tt.want)
		}
	}
}

func TestUpstream_Open(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/price-stream" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.RawQuery != "x=%2F1" {
			t.Errorf("raw query = %q", r.URL.RawQuery)
		}
		if r.Header.Get("Accept") != "text/event-stream" {
			t.Errorf("Accept = %q", r.Header.Get("Accept"))
		}
		if r.Header.Get("X-Request-ID") != "abc" {
			t.Errorf("X-Request-ID = %q", r.Header.Get("X-Request-ID"))
		}
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: ping\n\n")
	}))
	defer srv.Close()

	u := NewUpstream(upstreamConfig(srv.URL + "/v1"))
	resp, err := u.Open(context.Background(), "x=%2F1", http.Header{"X-Request-Id": {"abc"}})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if string(body) != "data: ping\n\n" {
		t.Errorf("body = %q", body)
	}
}

func TestUpstream_OpenErrors(t *testing.T) {
	tests := []struct {
		name     string
		handler  http.HandlerFunc
		wantKind UpstreamErrorKind
	}{
		{
			name:     "non-2xx",
			handler:  func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusServiceUnavailable) },
			wantKind: KindStatus,
		},
		{
			name:     "empty body",
			handler:  func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) },
			wantKind: KindNoBody,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := NewUpstream(upstreamConfig(srv.URL)).Open(context.Background(), "", nil)
			var ue *UpstreamError
			if !errors.As(err, &ue) {
				t.Fatalf("expected *UpstreamError, got %v", err)
			}
			if ue.Kind != tt.wantKind {
				t.Errorf("kind = %s, want %s", ue.Kind, tt.wantKind)
			}
			if !IsUpstreamUnavailable(err) {
				t.Error("IsUpstreamUnavailable = false")
			}
		})
	}
}

func TestUpstream_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewUpstream(upstreamConfig(url)).Open(context.Background(), "", nil)
	var ue *UpstreamError
	if !errors.As(err, &ue) || ue.Kind != KindTransport {
		t.Fatalf("expected transport error, got %v", err)
	}
	if !strings.Contains(ue.Error(), "upstream request failed") {
		t.Errorf("message = %q", ue.Error())
	}
}

type noBodyTransport struct{}

func (noBodyTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	return &http.Response{StatusCode: http.StatusOK, Header: http.Header{}, Body: nil, Request: r}, nil
}

func TestUpstream_NilBody(t *testing.T) {
	u := NewUpstreamWithClient(&http.Client{Transport: noBodyTransport{}}, upstreamConfig("http://feed"))
	_, err := u.Open(context.Background(), "", nil)
	var ue *UpstreamError
	if !errors.As(err, &ue) || ue.Kind != KindNoBody {
		t.Fatalf("expected no_body error, got %v", err)
	}
}

func TestWriteNoStream(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteNoStream(rec)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d", rec.Code)
	}
	if rec.Body.String() != NoStreamBody {
		t.Errorf("body = %q", rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); strings.Contains(ct, "event-stream") {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestWriteErrorResponse(t *testing.T) {
	tests := []struct {
		errType string
		want    int
	}{
		{ErrorTypeInvalidRequest, http.StatusBadRequest},
		{ErrorTypeNotFound, http.StatusNotFound},
		{ErrorTypeBadGateway, http.StatusBadGateway},
		{ErrorTypeGatewayTimeout, http.StatusGatewayTimeout},
		{ErrorTypeServerError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		if err := WriteErrorResponse(rec, NewErrorResponse("msg", tt.errType, "")); err != nil {
			t.Fatal(err)
		}
		if rec.Code != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.errType, rec.Code, tt.want)
		}
		if !strings.Contains(rec.Body.String(), `"type":"`+tt.errType+`"`) {
			t.Errorf("%s: body = %s", tt.errType, rec.Body.String())
		}
	}
}
