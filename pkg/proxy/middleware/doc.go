// Package middleware provides the relay's HTTP middleware.
//
// The server chains them outermost first:
//
//	Recovery → RequestID → Logging → CORS → route
//
// TimeoutMiddleware buffers responses and therefore wraps only the short
// routes (health, version, metrics), never the stream route. The logging
// wrapper keeps http.Flusher and Unwrap so the relay can flush and clear its
// write deadline through it.
package middleware
