// Package jsonrows reads a JSON Lines file as a forward-only tabular result.
// Each non-blank line is one row; the columns are the sorted keys of the
// first row.
package jsonrows

import (
	"bufio"
	"encoding/json"
	"io"
	"sort"
	"strconv"

	"github.com/pkg/errors"
	"github.com/tinywasm/lazyorm"
)

// Rows implements lazyorm.Rows over a JSONL stream.
type Rows struct {
	scanner *bufio.Scanner
	closer  io.Closer
	line    int

	columns []string
	current map[string]any
	err     error
	closed  bool
}

// NewRows reads rows from r. closer, when not nil, is closed by Close.
func NewRows(r io.Reader, closer io.Closer) *Rows {
	return &Rows{scanner: bufio.NewScanner(r), closer: closer}
}

// Next advances to the next non-blank line. It returns false at the end of
// the stream or on a malformed line; Err tells the two apart.
func (r *Rows) Next() bool {
	if r.closed || r.err != nil {
		return false
	}
	for r.scanner.Scan() {
		r.line++
		line := r.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var record map[string]any
		if err := json.Unmarshal(line, &record); err != nil {
			r.err = errors.Wrapf(err, "jsonrows: line %d", r.line)
			return false
		}
		if r.columns == nil {
			r.columns = sortedKeys(record)
		}
		r.current = record
		return true
	}
	r.err = r.scanner.Err()
	return false
}

// Columns lists the column names. They are known once the first row was read.
func (r *Rows) Columns() ([]string, error) {
	if r.columns == nil {
		return nil, errors.New("jsonrows: no row read yet")
	}
	return append([]string(nil), r.columns...), nil
}

// Scan copies the current row into dest, one destination per column.
func (r *Rows) Scan(dest ...any) error {
	if r.current == nil {
		return errors.New("jsonrows: Scan called without a current row")
	}
	if len(dest) != len(r.columns) {
		return errors.Errorf("jsonrows: expected %d destinations, got %d", len(r.columns), len(dest))
	}
	for i, col := range r.columns {
		if err := assign(dest[i], r.current[col]); err != nil {
			return errors.Wrapf(err, "jsonrows: line %d, column %s", r.line, col)
		}
	}
	return nil
}

func (r *Rows) Err() error { return r.err }

// Close releases the underlying reader. Calling it again does nothing.
func (r *Rows) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.current = nil
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func assign(dest, v any) error {
	switch d := dest.(type) {
	case *any:
		*d = v
	case *string:
		switch x := v.(type) {
		case nil:
			*d = ""
		case string:
			*d = x
		default:
			b, err := json.Marshal(x)
			if err != nil {
				return err
			}
			*d = string(b)
		}
	case *float64:
		f, err := toFloat(v)
		if err != nil {
			return err
		}
		*d = f
	case *int64:
		f, err := toFloat(v)
		if err != nil {
			return err
		}
		*d = int64(f)
	case *int:
		f, err := toFloat(v)
		if err != nil {
			return err
		}
		*d = int(f)
	case *bool:
		switch x := v.(type) {
		case nil:
			*d = false
		case bool:
			*d = x
		default:
			return errors.Errorf("cannot scan %T into *bool", v)
		}
	default:
		return errors.Errorf("unsupported destination %T", dest)
	}
	return nil
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return x, nil
	case string:
		return strconv.ParseFloat(x, 64)
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	}
	return 0, errors.Errorf("cannot scan %T into a number", v)
}

var _ lazyorm.Rows = (*Rows)(nil)
