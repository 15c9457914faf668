package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"mercator-hq/pricerelay/pkg/proxy"
)

// RecoveryMiddleware turns a handler panic into a 500 JSON error and logs the
// stack. http.ErrAbortHandler is re-raised so net/http can abort the
// connection as intended.
func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			err := recover()
			if err == nil {
				return
			}
			if err == http.ErrAbortHandler {
				panic(err)
			}

			slog.ErrorContext(r.Context(), "panic in handler",
				"error", err,
				"method", r.Method,
				"path", r.URL.Path,
				"stack", string(debug.Stack()),
			)

			_ = proxy.WriteErrorResponse(w, proxy.NewErrorResponse(
				"An internal error occurred. Please try again later.",
				proxy.ErrorTypeServerError,
				"",
			))
		}()

		next.ServeHTTP(w, r)
	})
}
