package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys used by the relay.
const (
	AttrRequestID      = attribute.Key("relay.request_id")
	AttrSessionID      = attribute.Key("relay.session_id")
	AttrUpstreamURL    = attribute.Key("relay.upstream.url")
	AttrUpstreamStatus = attribute.Key("relay.upstream.status")
	AttrBytes          = attribute.Key("relay.bytes")
	AttrChunks         = attribute.Key("relay.chunks")
	AttrOutcome        = attribute.Key("relay.outcome")
	AttrCancelReason   = attribute.Key("relay.cancel_reason")
)

// StreamStartAttributes are set when the relay span starts.
func StreamStartAttributes(requestID, sessionID, upstreamURL string) trace.SpanStartOption {
	return trace.WithAttributes(
		AttrRequestID.String(requestID),
		AttrSessionID.String(sessionID),
		AttrUpstreamURL.String(upstreamURL),
	)
}

// SetStreamResult records how a relayed stream ended.
func SetStreamResult(span trace.Span, outcome, cancelReason string, bytes, chunks int64) {
	attrs := []attribute.KeyValue{
		AttrOutcome.String(outcome),
		AttrBytes.Int64(bytes),
		AttrChunks.Int64(chunks),
	}
	if cancelReason != "" {
		attrs = append(attrs, AttrCancelReason.String(cancelReason))
	}
	span.SetAttributes(attrs...)
}
