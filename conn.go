package lazyorm

import "context"

// Conn represents the database connection abstraction.
// It must remain compatible with sql.DB, sql.Tx, mocks, and WASM drivers
// behind a thin adapter.
type Conn interface {
	Exec(ctx context.Context, query string, args ...any) (int64, error)
	Query(ctx context.Context, query string, args ...any) (Rows, error)
}

// Scanner represents a single row scanner.
type Scanner interface {
	Scan(dest ...any) error
}

// Rows represents a live, forward-only tabular result.
// Next reports whether another raw row is available, Close releases it.
type Rows interface {
	Scanner
	Next() bool
	Close() error
	Err() error
	Columns() ([]string, error)
}

// TxBoundConn represents a connection bound to a transaction.
type TxBoundConn interface {
	Conn
	Commit() error
	Rollback() error
}

// TxConn represents a connection that supports transactions.
type TxConn interface {
	Conn
	BeginTx(ctx context.Context) (TxBoundConn, error)
}

// resultSet owns a Rows for its whole lifetime and remembers whether it was released.
type resultSet struct {
	rows   Rows
	closed bool
}

func newResultSet(rows Rows) *resultSet {
	return &resultSet{rows: rows}
}

func (rs *resultSet) next() bool {
	if rs.closed {
		return false
	}
	return rs.rows.Next()
}

func (rs *resultSet) err() error {
	if rs.closed {
		return nil
	}
	return rs.rows.Err()
}

func (rs *resultSet) close() error {
	if rs.closed {
		return nil
	}
	rs.closed = true
	return rs.rows.Close()
}
