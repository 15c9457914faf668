package sse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"sync"
	"sync/atomic"
)

// ContentType is the media type of an SSE response.
const ContentType = "text/event-stream"

// StatusError is returned by Dial when the server answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Status     string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("sse: unexpected status %s", e.Status)
}

// ContentTypeError is returned by Dial when the response is not an event stream.
type ContentTypeError struct {
	ContentType string
}

// Error implements the error interface.
func (e *ContentTypeError) Error() string {
	return fmt.Sprintf("sse: unexpected content type %q", e.ContentType)
}

// Dialer opens SSE subscriptions.
type Dialer struct {
	// Client performs the request. It must not have a Timeout set, since the
	// timeout would cut the stream. Defaults to a client with no timeout.
	Client *http.Client

	// MaxFrameBytes bounds a single SSE line. Defaults to DefaultMaxFrameBytes.
	MaxFrameBytes int

	// Header is added to every subscription request.
	Header http.Header
}

// Dial opens a subscription to url and waits for the response headers. The
// returned Stream is open: the status is 2xx and the content type is
// text/event-stream. lastEventID is sent as Last-Event-ID when non-empty.
//
// Cancelling ctx or calling Stream.Close ends the subscription.
func (d *Dialer) Dial(ctx context.Context, url, lastEventID string) (*Stream, error) {
	client := d.Client
	if client == nil {
		client = &http.Client{}
	}

	ctx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("sse: build request: %w", err)
	}
	for k, vs := range d.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", ContentType)
	req.Header.Set("Cache-Control", "no-cache")
	if lastEventID != "" {
		req.Header.Set("Last-Event-ID", lastEventID)
	}

	resp, err := client.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("sse: connect: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		drainAndClose(resp.Body)
		cancel()
		return nil, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	ct := resp.Header.Get("Content-Type")
	if mt, _, err := mime.ParseMediaType(ct); err != nil || mt != ContentType {
		drainAndClose(resp.Body)
		cancel()
		return nil, &ContentTypeError{ContentType: ct}
	}

	return &Stream{
		body:    resp.Body,
		cancel:  cancel,
		decoder: NewDecoder(resp.Body, d.MaxFrameBytes),
	}, nil
}

// Stream is an open SSE subscription.
type Stream struct {
	body      io.ReadCloser
	cancel    context.CancelFunc
	decoder   *Decoder
	isClosed  atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// Next blocks until the next "message" event. Events with any other type are
// skipped. It returns io.EOF when the server ends the stream and
// ErrStreamClosed after Close.
func (s *Stream) Next() (Event, error) {
	for {
		ev, err := s.decoder.Next()
		if err != nil {
			if s.isClosed.Load() {
				return Event{}, ErrStreamClosed
			}
			return Event{}, err
		}
		if ev.Type == EventMessage {
			return ev, nil
		}
	}
}

// LastEventID returns the last event ID seen on the stream.
func (s *Stream) LastEventID() string {
	return s.decoder.LastEventID()
}

// Close ends the subscription. It is safe to call more than once and from any
// goroutine; a concurrent Next returns ErrStreamClosed.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.isClosed.Store(true)
		s.cancel()
		s.closeErr = s.body.Close()
	})
	return s.closeErr
}

// ErrStreamClosed is returned by Next after Close.
var ErrStreamClosed = errors.New("sse: stream closed")

func drainAndClose(body io.ReadCloser) {
	_, _ = io.CopyN(io.Discard, body, 4096)
	_ = body.Close()
}
