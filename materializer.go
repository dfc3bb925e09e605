package lazyorm

import (
	"context"

	"github.com/pkg/errors"
)

// RowMaterializer converts the current raw row of rows into a model.
// matched is false when the row does not belong to rm and must be skipped.
type RowMaterializer interface {
	Materialize(rows Rows, rm *ResultMap) (m Model, matched bool, err error)
}

// ScanMaterializer allocates rm.New() and scans the row into its Pointers().
type ScanMaterializer struct{}

func (ScanMaterializer) Materialize(rows Rows, rm *ResultMap) (Model, bool, error) {
	if rm == nil || rm.New == nil {
		return nil, false, errors.Wrap(ErrValidation, "result map has no constructor")
	}
	m := rm.New()
	if err := rows.Scan(m.Pointers()...); err != nil {
		return nil, false, err
	}
	if rm.Discriminator != nil && !rm.Discriminator(m) {
		return nil, false, nil
	}
	return m, true, nil
}

// rowValue materializes the current row of rows.
type rowValue[T any] func(ctx context.Context, rows Rows) (T, bool, error)

// rowReader drives a result set through a rowValue and a ResultHandler.
type rowReader[T any] struct {
	rs  *resultSet
	row rowValue[T]
}

// handleRows skips bounds.Offset raw rows without materializing them, then
// materializes rows until the handler stops, bounds.Limit rows were handed
// out, or the result set is exhausted.
func (r *rowReader[T]) handleRows(ctx context.Context, bounds RowBounds, handler ResultHandler[T]) error {
	for i := 0; i < bounds.offset; i++ {
		if !r.rs.next() {
			return r.rs.err()
		}
	}
	rc := &resultContext[T]{}
	for !rc.stopped && rc.count < bounds.limit && r.rs.next() {
		v, matched, err := r.row(ctx, r.rs.rows)
		if err != nil {
			return err
		}
		if !matched {
			continue
		}
		rc.next(v)
		handler.HandleResult(rc)
	}
	return r.rs.err()
}
