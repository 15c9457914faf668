package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"mercator-hq/pricerelay/pkg/journal"
	"mercator-hq/pricerelay/pkg/proxy"
	"mercator-hq/pricerelay/pkg/proxy/middleware"
	"mercator-hq/pricerelay/pkg/telemetry/logging"
	"mercator-hq/pricerelay/pkg/telemetry/metrics"
	"mercator-hq/pricerelay/pkg/telemetry/tracing"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

const defaultCopyBufferSize = 32 * 1024

// SessionRecorder receives one record per relayed stream. Record must not
// block.
type SessionRecorder interface {
	Record(record *journal.SessionRecord)
}

// StreamHandler relays the upstream price stream to one client per request.
type StreamHandler struct {
	upstream *proxy.Upstream
	metrics  *metrics.Collector
	tracer   *tracing.Tracer
	recorder SessionRecorder
	bufSize  int

	// closing is cancelled by Close; live streams end with ErrServerShutdown.
	closing context.Context
	close   context.CancelFunc
}

// StreamOption configures a StreamHandler.
type StreamOption func(*StreamHandler)

// WithMetrics records relay metrics on c.
func WithMetrics(c *metrics.Collector) StreamOption {
	return func(h *StreamHandler) { h.metrics = c }
}

// WithTracer opens a span per stream.
func WithTracer(t *tracing.Tracer) StreamOption {
	return func(h *StreamHandler) { h.tracer = t }
}

// WithRecorder journals every stream.
func WithRecorder(r SessionRecorder) StreamOption {
	return func(h *StreamHandler) { h.recorder = r }
}

// WithBufferSize sets the copy buffer size. It bounds how much upstream
// data can sit in the relay between a read and its flush.
func WithBufferSize(n int) StreamOption {
	return func(h *StreamHandler) {
		if n > 0 {
			h.bufSize = n
		}
	}
}

// NewStreamHandler creates a handler relaying from upstream.
func NewStreamHandler(upstream *proxy.Upstream, opts ...StreamOption) *StreamHandler {
	closing, cancel := context.WithCancel(context.Background())
	h := &StreamHandler{
		upstream: upstream,
		bufSize:  defaultCopyBufferSize,
		closing:  closing,
		close:    cancel,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Close ends every live stream. http.Server.Shutdown does not cancel
// running handlers, so the server calls this first.
func (h *StreamHandler) Close() {
	h.close()
}

// ServeHTTP implements http.Handler.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	requestID := middleware.GetRequestID(r.Context())
	session := &journal.SessionRecord{
		ID:         uuid.NewString(),
		RequestID:  requestID,
		RemoteAddr: r.RemoteAddr,
		Query:      r.URL.RawQuery,
		StartedAt:  time.Now(),
	}
	upstreamURL := h.upstream.URL(r.URL.RawQuery)

	ctx := logging.WithSessionID(r.Context(), session.ID)
	ctx, span := h.tracer.Start(ctx, "relay.stream",
		trace.WithSpanKind(trace.SpanKindServer),
		tracing.StreamStartAttributes(requestID, session.ID, upstreamURL),
	)
	defer span.End()

	upstreamCtx, token := proxy.NewCancelToken(ctx, func(cause error) {
		h.metrics.RecordCancellation(proxy.CancelReason(cause))
		slog.DebugContext(ctx, "upstream request cancelled", "cause", cause)
	})
	stopShutdown := context.AfterFunc(h.closing, func() {
		token.Cancel(proxy.ErrServerShutdown)
	})
	defer stopShutdown()

	header := http.Header{}
	if requestID != "" {
		header.Set(middleware.RequestIDHeader, requestID)
	}
	if lastID := r.Header.Get("Last-Event-ID"); lastID != "" {
		header.Set("Last-Event-ID", lastID)
	}
	tracing.Inject(upstreamCtx, header)

	connectStart := time.Now()
	resp, err := h.upstream.Open(upstreamCtx, r.URL.RawQuery, header)
	if err != nil {
		h.reject(ctx, w, session, token, err, time.Since(connectStart))
		tracing.SetStatus(span, err)
		tracing.SetStreamResult(span, string(session.Outcome), proxy.CancelReason(token.Cause()), 0, 0)
		return
	}
	defer resp.Body.Close()

	h.metrics.RecordUpstreamConnect(strconv.Itoa(resp.StatusCode), time.Since(connectStart))
	session.UpstreamStatus = resp.StatusCode

	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		slog.DebugContext(ctx, "failed to clear write deadline", "error", err)
	}

	proxy.SetSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	h.metrics.StreamOpened()

	var written, chunks int64
	pipeErr := rc.Flush()
	if pipeErr != nil {
		token.Cancel(fmt.Errorf("%w: %w", proxy.ErrClientWrite, pipeErr))
	} else {
		written, chunks, pipeErr = h.pipe(w, rc, resp.Body, token)
	}

	cause := token.Cause()
	session.BytesRelayed = written
	session.Chunks = chunks
	session.Outcome = outcomeFor(cause, pipeErr)
	if pipeErr != nil {
		session.Error = pipeErr.Error()
	}

	switch session.Outcome {
	case journal.OutcomeCompleted, journal.OutcomeClientDisconnected, journal.OutcomeShutdown:
		slog.InfoContext(ctx, "stream closed",
			"outcome", session.Outcome,
			"bytes_relayed", written,
			"chunks_sent", chunks,
			"cause", cause,
		)
	default:
		// Headers are already sent; the failure can only be logged.
		slog.WarnContext(ctx, "relay pipe failed",
			"error", pipeErr,
			"bytes_relayed", written,
			"chunks_sent", chunks,
		)
	}

	h.finish(session)
	h.metrics.StreamClosed(string(session.Outcome), session.Duration(), written, chunks)
	tracing.SetStreamResult(span, string(session.Outcome), proxy.CancelReason(cause), written, chunks)
	if session.Outcome == journal.OutcomeUpstreamError {
		tracing.SetStatus(span, pipeErr)
	} else {
		tracing.SetStatus(span, nil)
	}
}

// reject answers 502 when the upstream has nothing to relay.
func (h *StreamHandler) reject(ctx context.Context, w http.ResponseWriter, session *journal.SessionRecord, token *proxy.CancelToken, err error, connect time.Duration) {
	token.Cancel(err)

	status := "error"
	var ue *proxy.UpstreamError
	if errors.As(err, &ue) && ue.StatusCode > 0 {
		status = strconv.Itoa(ue.StatusCode)
		session.UpstreamStatus = ue.StatusCode
	}
	h.metrics.RecordUpstreamConnect(status, connect)

	switch cause := token.Cause(); {
	case errors.Is(cause, proxy.ErrClientDisconnected):
		session.Outcome = journal.OutcomeClientDisconnected
	case errors.Is(cause, proxy.ErrServerShutdown):
		session.Outcome = journal.OutcomeShutdown
	default:
		session.Outcome = journal.OutcomeUpstreamUnavailable
	}
	session.Error = err.Error()

	slog.WarnContext(ctx, "upstream unavailable",
		"error", err,
		"upstream", h.upstream.URL(session.Query),
	)

	proxy.WriteNoStream(w)
	h.metrics.StreamRejected(string(session.Outcome))
	h.finish(session)
}

// pipe copies body to w, flushing after every read. Every exit fires the
// token with its cause; a cause set earlier by the other side wins.
func (h *StreamHandler) pipe(w io.Writer, rc *http.ResponseController, body io.Reader, token *proxy.CancelToken) (written, chunks int64, err error) {
	buf := make([]byte, h.bufSize)
	for {
		nr, rerr := body.Read(buf)
		if nr > 0 {
			nw, werr := w.Write(buf[:nr])
			written += int64(nw)
			if werr == nil && nw < nr {
				werr = io.ErrShortWrite
			}
			if werr == nil {
				werr = rc.Flush()
			}
			if werr != nil {
				err = fmt.Errorf("%w: %w", proxy.ErrClientWrite, werr)
				token.Cancel(err)
				return written, chunks, err
			}
			chunks++
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				token.Cancel(proxy.ErrUpstreamClosed)
				return written, chunks, nil
			}
			err = fmt.Errorf("%w: %w", proxy.ErrUpstreamRead, rerr)
			token.Cancel(err)
			return written, chunks, err
		}
	}
}

func (h *StreamHandler) finish(session *journal.SessionRecord) {
	session.EndedAt = time.Now()
	if h.recorder != nil {
		h.recorder.Record(session)
	}
}

// outcomeFor derives the journal outcome from the token's winning cause.
func outcomeFor(cause, pipeErr error) journal.Outcome {
	switch {
	case errors.Is(cause, proxy.ErrClientDisconnected), errors.Is(cause, proxy.ErrClientWrite):
		return journal.OutcomeClientDisconnected
	case errors.Is(cause, proxy.ErrServerShutdown):
		return journal.OutcomeShutdown
	case pipeErr == nil:
		return journal.OutcomeCompleted
	default:
		return journal.OutcomeUpstreamError
	}
}
