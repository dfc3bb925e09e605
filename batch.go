package lazyorm

import (
	"context"
	"strconv"
)

// BatchResult reports one group of queued updates: consecutive updates of
// the same statement with the same SQL, their arguments in queue order and,
// after the flush, the rows each one affected.
type BatchResult struct {
	StatementID  string
	SQL          string
	Args         [][]any
	UpdateCounts []int64
}

// batch is the update queue of an ExecutorBatch executor.
type batch struct {
	pending []*BatchResult
}

func (b *batch) add(stmt *Statement, plan Plan) {
	if n := len(b.pending); n > 0 {
		last := b.pending[n-1]
		if last.StatementID == stmt.ID && last.SQL == plan.Query {
			last.Args = append(last.Args, plan.Args)
			return
		}
	}
	b.pending = append(b.pending, &BatchResult{
		StatementID: stmt.ID,
		SQL:         plan.Query,
		Args:        [][]any{plan.Args},
	})
}

func (b *batch) size() int { return len(b.pending) }

func (b *batch) discard() { b.pending = nil }

// flush runs every queued update in order. On failure it returns the groups
// that completed, the failing group last with the counts it got so far.
func (b *batch) flush(ctx context.Context, conn Conn) ([]BatchResult, error) {
	queued := b.pending
	b.pending = nil

	results := make([]BatchResult, 0, len(queued))
	for _, r := range queued {
		r.UpdateCounts = make([]int64, 0, len(r.Args))
		for i, args := range r.Args {
			n, err := conn.Exec(ctx, r.SQL, args...)
			if err != nil {
				results = append(results, *r)
				return results, executionError(err, "batch "+r.StatementID+" #"+strconv.Itoa(i))
			}
			r.UpdateCounts = append(r.UpdateCounts, n)
		}
		results = append(results, *r)
	}
	return results, nil
}
