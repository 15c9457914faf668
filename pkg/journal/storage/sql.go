package storage

import (
	"fmt"
	"strings"

	"mercator-hq/pricerelay/pkg/journal"
)

// columns is the shared column list of the sessions table.
const columns = `id, request_id, remote_addr, query, started_at, ended_at,
	upstream_status, bytes_relayed, chunks, outcome, error`

// whereClause builds a WHERE clause (without the keyword) from query
// filters. placeholder renders the n-th argument marker, starting at 1.
// Times are passed through conv so each backend can choose its encoding.
func whereClause(query *journal.Query, placeholder func(n int) string, conv func(t any) any) (string, []any) {
	if query == nil {
		return "", nil
	}

	var conditions []string
	var args []any

	add := func(cond string, arg any) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(cond, placeholder(len(args))))
	}

	if query.StartTime != nil {
		add("started_at >= %s", conv(*query.StartTime))
	}
	if query.EndTime != nil {
		add("started_at <= %s", conv(*query.EndTime))
	}
	if query.Outcome != "" {
		add("outcome = %s", string(query.Outcome))
	}
	if query.RequestID != "" {
		add("request_id = %s", query.RequestID)
	}

	return strings.Join(conditions, " AND "), args
}

// orderAndPage renders ORDER BY, LIMIT and OFFSET. The query must be
// validated so SortOrder is safe to interpolate.
func orderAndPage(query *journal.Query) string {
	order := "DESC"
	limit := journal.DefaultLimit
	offset := 0
	if query != nil {
		if query.SortOrder == "asc" {
			order = "ASC"
		}
		if query.Limit > 0 {
			limit = query.Limit
		}
		offset = query.Offset
	}

	clause := fmt.Sprintf(" ORDER BY started_at %s, id %s LIMIT %d", order, order, limit)
	if offset > 0 {
		clause += fmt.Sprintf(" OFFSET %d", offset)
	}
	return clause
}

func validate(backend string, query *journal.Query) error {
	if query == nil {
		return nil
	}
	if err := query.Validate(); err != nil {
		return journal.NewStorageError(backend, "query", err)
	}
	return nil
}
