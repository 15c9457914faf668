package proxy

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"mercator-hq/pricerelay/pkg/config"
)

// Upstream opens price streams against the configured feed service.
type Upstream struct {
	client    *http.Client
	streamURL string
}

// NewUpstream creates an Upstream with a pooled transport. The client has no
// overall timeout since streams are long-lived; ConnectTimeout bounds the
// dial and the wait for response headers.
func NewUpstream(cfg config.UpstreamConfig) *Upstream {
	dialer := &net.Dialer{
		Timeout:   cfg.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConns,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		ResponseHeaderTimeout: cfg.ConnectTimeout,
		ReadBufferSize:        cfg.ReadBufferSize,
		ForceAttemptHTTP2:     true,
		DisableCompression:    true,
	}

	return NewUpstreamWithClient(&http.Client{Transport: transport}, cfg)
}

// NewUpstreamWithClient creates an Upstream that sends requests with client.
func NewUpstreamWithClient(client *http.Client, cfg config.UpstreamConfig) *Upstream {
	return &Upstream{
		client:    client,
		streamURL: strings.TrimRight(cfg.BaseURL, "/") + cfg.StreamPath,
	}
}

// URL returns the upstream stream URL for rawQuery. The query is appended
// verbatim.
func (u *Upstream) URL(rawQuery string) string {
	if rawQuery == "" {
		return u.streamURL
	}
	return u.streamURL + "?" + rawQuery
}

// Open requests the upstream stream. header is merged into the request
// after Accept is set. On success the caller owns resp.Body. Every failure
// is an *UpstreamError and leaves nothing to close.
func (u *Upstream) Open(ctx context.Context, rawQuery string, header http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.URL(rawQuery), nil)
	if err != nil {
		return nil, NewUpstreamError(KindTransport, 0, fmt.Errorf("failed to create request: %w", err))
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, NewUpstreamError(KindTransport, 0, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		drain(resp.Body)
		return nil, NewUpstreamError(KindStatus, resp.StatusCode, nil)
	}
	if resp.Body == nil || resp.Body == http.NoBody {
		if resp.Body != nil {
			resp.Body.Close()
		}
		return nil, NewUpstreamError(KindNoBody, resp.StatusCode, nil)
	}

	return resp, nil
}

// CloseIdleConnections closes pooled connections not in use.
func (u *Upstream) CloseIdleConnections() {
	u.client.CloseIdleConnections()
}

func drain(body io.ReadCloser) {
	if body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 4096))
	body.Close()
}
