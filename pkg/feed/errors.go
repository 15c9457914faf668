package feed

import (
	"errors"
	"fmt"
)

// Sentinel errors for message decoding. DecodeError wraps one of these so
// callers can classify failures with errors.Is.
var (
	// ErrMalformedPayload indicates the payload is not a JSON object.
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrMissingPrice indicates the JSON object has no price field, or it is null.
	ErrMissingPrice = errors.New("missing price")

	// ErrInvalidPrice indicates the price field could not be coerced to a number.
	ErrInvalidPrice = errors.New("invalid price")
)

// DecodeError describes a payload that was dropped during decoding.
type DecodeError struct {
	// Reason is one of the sentinel errors above.
	Reason error

	// Payload is the offending payload, truncated for logging.
	Payload string

	// Cause is the underlying parser error, if any.
	Cause error
}

// maxPayloadInError bounds how much of a bad payload is kept in a DecodeError.
const maxPayloadInError = 128

func newDecodeError(reason error, payload string, cause error) *DecodeError {
	if len(payload) > maxPayloadInError {
		payload = payload[:maxPayloadInError] + "..."
	}
	return &DecodeError{Reason: reason, Payload: payload, Cause: cause}
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("decode %q: %v: %v", e.Payload, e.Reason, e.Cause)
	}
	return fmt.Sprintf("decode %q: %v", e.Payload, e.Reason)
}

// Unwrap exposes the reason so errors.Is matches the sentinel errors.
func (e *DecodeError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Reason, e.Cause}
	}
	return []error{e.Reason}
}
