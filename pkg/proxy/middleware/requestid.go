package middleware

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"

	"mercator-hq/pricerelay/pkg/telemetry/logging"
)

const (
	// RequestIDHeader is the HTTP header for request ID.
	RequestIDHeader = "X-Request-ID"

	maxRequestIDLength = 128
)

// RequestIDMiddleware gives every request an ID. A client-supplied
// X-Request-ID is kept when it is short and printable; otherwise a new one
// is generated. The ID is echoed in the response, stored in the context for
// logging, and forwarded upstream by the relay.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if !validRequestID(requestID) {
			requestID = generateRequestID()
		}

		w.Header().Set(RequestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), requestID)))
	})
}

// generateRequestID returns 16 random bytes hex encoded.
func generateRequestID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}

// GetRequestID returns the request ID set by RequestIDMiddleware, or "".
func GetRequestID(ctx context.Context) string {
	return logging.GetRequestID(ctx)
}
