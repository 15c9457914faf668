package proxy

import (
	"errors"
	"fmt"
	"net/http"
)

// UpstreamErrorKind classifies why the upstream could not provide a stream.
type UpstreamErrorKind string

const (
	// KindTransport means the request failed before response headers arrived.
	KindTransport UpstreamErrorKind = "transport"

	// KindNoBody means the upstream answered without a readable body.
	KindNoBody UpstreamErrorKind = "no_body"

	// KindStatus means the upstream answered with a non-2xx status.
	KindStatus UpstreamErrorKind = "status"
)

// UpstreamError is returned when the upstream has no stream to relay. The
// relay answers every UpstreamError with 502 and never retries.
type UpstreamError struct {
	Kind       UpstreamErrorKind
	StatusCode int
	Cause      error
}

// NewUpstreamError creates an UpstreamError.
func NewUpstreamError(kind UpstreamErrorKind, statusCode int, cause error) *UpstreamError {
	return &UpstreamError{Kind: kind, StatusCode: statusCode, Cause: cause}
}

func (e *UpstreamError) Error() string {
	switch e.Kind {
	case KindStatus:
		return fmt.Sprintf("upstream returned status %d", e.StatusCode)
	case KindNoBody:
		return "upstream response has no body"
	default:
		if e.Cause != nil {
			return fmt.Sprintf("upstream request failed: %v", e.Cause)
		}
		return "upstream request failed"
	}
}

func (e *UpstreamError) Unwrap() error {
	return e.Cause
}

// IsUpstreamUnavailable reports whether err means no stream could be opened.
func IsUpstreamUnavailable(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}

// Cancellation causes recorded on the upstream token.
var (
	// ErrClientDisconnected fires when the downstream client goes away.
	ErrClientDisconnected = errors.New("client disconnected")

	// ErrUpstreamClosed fires when the upstream ends the stream.
	ErrUpstreamClosed = errors.New("upstream closed stream")

	// ErrUpstreamRead fires when reading the upstream body fails mid-stream.
	ErrUpstreamRead = errors.New("upstream read failed")

	// ErrClientWrite fires when writing or flushing to the client fails.
	ErrClientWrite = errors.New("client write failed")

	// ErrServerShutdown fires when the relay is shutting down.
	ErrServerShutdown = errors.New("relay shutting down")
)

// CancelReason maps a token cause to a short metric label.
func CancelReason(cause error) string {
	switch {
	case cause == nil:
		return ""
	case errors.Is(cause, ErrClientDisconnected):
		return "client_disconnected"
	case errors.Is(cause, ErrUpstreamClosed):
		return "upstream_closed"
	case errors.Is(cause, ErrUpstreamRead):
		return "upstream_read"
	case errors.Is(cause, ErrClientWrite):
		return "client_write"
	case errors.Is(cause, ErrServerShutdown):
		return "shutdown"
	case IsUpstreamUnavailable(cause):
		return "upstream_unavailable"
	default:
		return "other"
	}
}

// ErrorResponse is the JSON error body used by non-stream routes.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes one error.
type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
}

// Error types used in ErrorDetail.Type.
const (
	ErrorTypeInvalidRequest = "invalid_request_error"
	ErrorTypeNotFound       = "not_found"
	ErrorTypeServerError    = "server_error"
	ErrorTypeBadGateway     = "bad_gateway"
	ErrorTypeGatewayTimeout = "gateway_timeout"
)

// NewErrorResponse creates an ErrorResponse.
func NewErrorResponse(message, errType, code string) *ErrorResponse {
	return &ErrorResponse{Error: ErrorDetail{Message: message, Type: errType, Code: code}}
}

// StatusCode returns the HTTP status matching the error type.
func (e *ErrorResponse) StatusCode() int {
	switch e.Error.Type {
	case ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeBadGateway:
		return http.StatusBadGateway
	case ErrorTypeGatewayTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
