package middleware

type contextKey string

const (
	// StartTimeKey holds the time the request entered the middleware chain.
	StartTimeKey contextKey = "start_time"
)
