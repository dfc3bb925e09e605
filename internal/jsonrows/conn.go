package jsonrows

import (
	"context"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/tinywasm/lazyorm"
)

// Conn is a read-only lazyorm.Conn whose only table is one JSONL source.
// The query text is not interpreted: every query reads the whole source
// from the start, and the statement's RowBounds do the slicing.
type Conn struct {
	open func() (io.ReadCloser, error)
}

// Open returns a Conn over the file at path. The file is opened per query.
func Open(path string) *Conn {
	return NewConn(func() (io.ReadCloser, error) {
		return os.Open(path)
	})
}

// NewConn returns a Conn that calls open for every query.
func NewConn(open func() (io.ReadCloser, error)) *Conn {
	return &Conn{open: open}
}

func (c *Conn) Query(ctx context.Context, query string, args ...any) (lazyorm.Rows, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rc, err := c.open()
	if err != nil {
		return nil, errors.Wrap(err, "jsonrows: open")
	}
	return NewRows(rc, rc), nil
}

func (c *Conn) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	return 0, errors.Wrap(lazyorm.ErrUnsupported, "jsonrows: source is read-only")
}

var _ lazyorm.Conn = (*Conn)(nil)
