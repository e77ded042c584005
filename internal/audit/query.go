package audit

import (
	"fmt"
	"strings"
	"time"
)

// where renders the WHERE clause of f. ph returns the driver placeholder for
// the n-th (1-based) argument; ts converts a time to the column type.
func (f Filter) where(ph func(n int) string, ts func(time.Time) any) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, ph(len(args))))
	}
	if f.Tool != "" {
		add("tool = %s", f.Tool)
	}
	if f.Principal != "" {
		add("principal = %s", f.Principal)
	}
	if f.Result != "" {
		add("result = %s", string(f.Result))
	}
	if !f.Since.IsZero() {
		add("created_at >= %s", ts(f.Since))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

type scanner interface {
	Scan(dest ...any) error
}

const selectColumns = `id, created_at, principal, transport, tool, grp, input_hash, result, duration_ms, error, request_id`
