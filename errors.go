package lazyorm

import "github.com/pkg/errors"

// ErrNotFound is returned when ReadOne() finds no matching row.
var ErrNotFound = errors.New("record not found")

// ErrValidation is returned when validate() finds a mismatch.
var ErrValidation = errors.New("validation error")

// ErrEmptyTable is returned when TableName() returns an empty string.
var ErrEmptyTable = errors.New("empty table name")

// ErrNoTxSupport is returned by DB.Tx() when the connection does not implement TxConn.
var ErrNoTxSupport = errors.New("transaction not supported")

// ErrExecutorClosed is returned by every QueryExecutor operation after Close.
var ErrExecutorClosed = errors.New("executor was closed")

// ErrCursorClosed is returned when an iterator is requested from a closed cursor.
var ErrCursorClosed = errors.New("cursor already closed")

// ErrIteratorRetrieved is returned by the second call to Cursor.Iterator.
var ErrIteratorRetrieved = errors.New("cannot open more than one iterator on a cursor")

// ErrNoSuchElement is returned when a cursor iterator is advanced past its last row.
var ErrNoSuchElement = errors.New("end of sequence")

// ErrUnsupported is returned by operations a read-only sequence does not offer.
var ErrUnsupported = errors.New("unsupported operation")

// ErrExecution marks failures of the underlying connection while a statement runs.
var ErrExecution = errors.New("execution failure")

// ErrStatementNotFound is returned when a statement id is not registered.
var ErrStatementNotFound = errors.New("statement not found")

// ErrDuplicateStatement is returned when a statement id is registered twice.
var ErrDuplicateStatement = errors.New("statement already registered")

// ErrNoExecutionInFlight is returned by DeferLoad outside of a running statement.
var ErrNoExecutionInFlight = errors.New("no statement execution in flight")

// ErrDuplicateLoader is returned when a property already has a pending load.
var ErrDuplicateLoader = errors.New("property already has a pending load")

// ErrTooManyResults is returned when a single-result load receives more than one row.
var ErrTooManyResults = errors.New("statement returned more than one row where at most one was expected")

// ErrNoPropertyAccessor is returned when associations target a model without PropertyAccessor.
var ErrNoPropertyAccessor = errors.New("model does not implement PropertyAccessor")

// ErrUnknownProperty is returned by PropertyAccessor implementations for names they do not own.
var ErrUnknownProperty = errors.New("unknown property")

// ErrNoLoaderExecutor is returned when a deferred load has no open executor to run on.
var ErrNoLoaderExecutor = errors.New("no executor available for deferred load")

// ExecutionError wraps a failure raised by the connection while rows are fetched.
// Cause is the original error with incidental wrapping layers removed.
type ExecutionError struct {
	Op    string
	Cause error
}

func (e *ExecutionError) Error() string {
	return e.Op + ": " + e.Cause.Error()
}

// Unwrap lets errors.Is match both ErrExecution and the original cause.
func (e *ExecutionError) Unwrap() []error {
	return []error{ErrExecution, e.Cause}
}

func executionError(err error, op string) error {
	if err == nil {
		return nil
	}
	var ee *ExecutionError
	if errors.As(err, &ee) {
		return ee
	}
	return &ExecutionError{Op: op, Cause: errors.Cause(err)}
}
