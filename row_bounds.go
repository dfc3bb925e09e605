package lazyorm

import (
	"math"

	"github.com/tinywasm/fmt"
)

// NoLimit is the limit of a RowBounds that yields every remaining row.
const NoLimit = math.MaxInt

// RowBounds restricts which logical rows of a result are surfaced:
// Offset leading rows are skipped and at most Limit rows are yielded.
type RowBounds struct {
	offset int
	limit  int
}

// DefaultRowBounds skips nothing and yields everything.
var DefaultRowBounds = RowBounds{offset: 0, limit: NoLimit}

// NewRowBounds validates and returns an (offset, limit) pair.
func NewRowBounds(offset, limit int) (RowBounds, error) {
	if offset < 0 || limit < 0 {
		return RowBounds{}, fmt.Err(ErrValidation, "row bounds must not be negative")
	}
	return RowBounds{offset: offset, limit: limit}, nil
}

func (b RowBounds) Offset() int { return b.offset }
func (b RowBounds) Limit() int  { return b.limit }

// IsDefault reports whether b neither skips nor limits rows.
func (b RowBounds) IsDefault() bool {
	return b.offset == 0 && b.limit == NoLimit
}

// bounded reports whether readItems rows (counted from the very first raw row)
// exhaust b.
func (b RowBounds) bounded(readItems int) bool {
	if b.limit == NoLimit {
		return false
	}
	return readItems-b.offset >= b.limit
}
