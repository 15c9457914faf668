package journal

import (
	"context"
	"time"
)

// Outcome is how a relayed stream ended.
type Outcome string

const (
	// OutcomeCompleted means the upstream ended the stream normally.
	OutcomeCompleted Outcome = "completed"

	// OutcomeClientDisconnected means the downstream client went away.
	OutcomeClientDisconnected Outcome = "client_disconnected"

	// OutcomeUpstreamError means the upstream read failed mid-stream.
	OutcomeUpstreamError Outcome = "upstream_error"

	// OutcomeUpstreamUnavailable means no stream was opened and the client
	// received 502.
	OutcomeUpstreamUnavailable Outcome = "upstream_unavailable"

	// OutcomeShutdown means the relay closed the stream while stopping.
	OutcomeShutdown Outcome = "shutdown"
)

// Valid reports whether o is a known outcome.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeCompleted, OutcomeClientDisconnected, OutcomeUpstreamError,
		OutcomeUpstreamUnavailable, OutcomeShutdown:
		return true
	}
	return false
}

// SessionRecord describes one relayed stream. It records transport facts
// only; prices are never journaled.
type SessionRecord struct {
	ID             string    `json:"id"`
	RequestID      string    `json:"request_id"`
	RemoteAddr     string    `json:"remote_addr"`
	Query          string    `json:"query,omitempty"`
	StartedAt      time.Time `json:"started_at"`
	EndedAt        time.Time `json:"ended_at"`
	UpstreamStatus int       `json:"upstream_status"`
	BytesRelayed   int64     `json:"bytes_relayed"`
	Chunks         int64     `json:"chunks"`
	Outcome        Outcome   `json:"outcome"`
	Error          string    `json:"error,omitempty"`
}

// Duration is the stream lifetime.
func (r *SessionRecord) Duration() time.Duration {
	if r.EndedAt.IsZero() {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}

// Query filters session records. Zero fields match everything.
type Query struct {
	// StartTime and EndTime bound StartedAt, both inclusive.
	StartTime *time.Time
	EndTime   *time.Time

	Outcome   Outcome
	RequestID string

	Limit  int
	Offset int

	// SortOrder is "asc" or "desc" on StartedAt. Default "desc".
	SortOrder string
}

// Storage persists session records. Implementations are safe for
// concurrent use.
type Storage interface {
	Store(ctx context.Context, record *SessionRecord) error

	// Query returns matching records ordered by StartedAt.
	Query(ctx context.Context, query *Query) ([]*SessionRecord, error)

	Count(ctx context.Context, query *Query) (int64, error)

	// Delete removes matching records and returns how many were removed.
	Delete(ctx context.Context, query *Query) (int64, error)

	// DeleteOldest keeps the newest keep records and removes the rest.
	DeleteOldest(ctx context.Context, keep int64) (int64, error)

	Ping(ctx context.Context) error

	// Backend names the implementation, e.g. "sqlite".
	Backend() string

	Close() error
}
