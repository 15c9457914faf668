package journal

import (
	"fmt"
	"sort"
)

const (
	// DefaultLimit is the number of records returned when Limit is 0.
	DefaultLimit = 100

	// MaxLimit is the largest accepted Limit.
	MaxLimit = 10000
)

// Validate checks query parameters.
func (q *Query) Validate() error {
	if q.Limit < 0 {
		return NewQueryError(q, fmt.Errorf("limit must be >= 0, got %d", q.Limit))
	}
	if q.Limit > MaxLimit {
		return NewQueryError(q, fmt.Errorf("limit must be <= %d, got %d", MaxLimit, q.Limit))
	}
	if q.Offset < 0 {
		return NewQueryError(q, fmt.Errorf("offset must be >= 0, got %d", q.Offset))
	}
	if q.SortOrder != "" && q.SortOrder != "asc" && q.SortOrder != "desc" {
		return NewQueryError(q, fmt.Errorf("invalid sort order: %s (must be 'asc' or 'desc')", q.SortOrder))
	}
	if q.StartTime != nil && q.EndTime != nil && q.StartTime.After(*q.EndTime) {
		return NewQueryError(q, fmt.Errorf("start_time must be before end_time"))
	}
	if q.Outcome != "" && !q.Outcome.Valid() {
		return NewQueryError(q, fmt.Errorf("invalid outcome: %s", q.Outcome))
	}
	return nil
}

// ApplyDefaults fills the default limit and sort order.
func (q *Query) ApplyDefaults() {
	if q.Limit == 0 {
		q.Limit = DefaultLimit
	}
	if q.SortOrder == "" {
		q.SortOrder = "desc"
	}
}

// Matches reports whether r passes the query's filters. Paging is ignored.
func (q *Query) Matches(r *SessionRecord) bool {
	if q == nil {
		return true
	}
	if q.StartTime != nil && r.StartedAt.Before(*q.StartTime) {
		return false
	}
	if q.EndTime != nil && r.StartedAt.After(*q.EndTime) {
		return false
	}
	if q.Outcome != "" && r.Outcome != q.Outcome {
		return false
	}
	if q.RequestID != "" && r.RequestID != q.RequestID {
		return false
	}
	return true
}

// Apply filters, sorts and pages records in memory. Backends without
// server-side querying use it.
func (q *Query) Apply(records []*SessionRecord) []*SessionRecord {
	out := make([]*SessionRecord, 0, len(records))
	for _, r := range records {
		if q.Matches(r) {
			out = append(out, r)
		}
	}

	asc := q != nil && q.SortOrder == "asc"
	sort.SliceStable(out, func(i, j int) bool {
		if asc {
			return out[i].StartedAt.Before(out[j].StartedAt)
		}
		return out[i].StartedAt.After(out[j].StartedAt)
	})

	if q == nil {
		return out
	}
	if q.Offset >= len(out) {
		return []*SessionRecord{}
	}
	out = out[q.Offset:]
	if q.Limit > 0 && q.Limit < len(out) {
		out = out[:q.Limit]
	}
	return out
}

// SortOldestFirst sorts records by StartedAt ascending.
func SortOldestFirst(records []*SessionRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].StartedAt.Before(records[j].StartedAt)
	})
}
