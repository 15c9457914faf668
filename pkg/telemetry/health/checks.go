package health

import (
	"context"
	"fmt"
	"net"
	"net/url"
)

// Pinger is implemented by storage backends that can report liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck adapts a Pinger to a CheckFunc.
func PingCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		return p.Ping(ctx)
	}
}

// UpstreamCheck dials the host of rawURL over TCP. It does not open a stream:
// a readiness probe must not consume an upstream subscription.
func UpstreamCheck(rawURL string) CheckFunc {
	return func(ctx context.Context) error {
		u, err := url.Parse(rawURL)
		if err != nil {
			return fmt.Errorf("invalid upstream URL: %w", err)
		}

		host := u.Host
		if u.Port() == "" {
			port := "80"
			if u.Scheme == "https" {
				port = "443"
			}
			host = net.JoinHostPort(u.Hostname(), port)
		}

		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", host)
		if err != nil {
			return fmt.Errorf("upstream unreachable: %w", err)
		}
		return conn.Close()
	}
}
