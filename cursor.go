package lazyorm

import (
	"context"
	"iter"
)

type cursorStatus int

const (
	// cursorCreated: rows not touched yet.
	cursorCreated cursorStatus = iota
	// cursorOpen: at least one fetch happened.
	cursorOpen
	// cursorClosed: released before the rows were exhausted.
	cursorClosed
	// cursorConsumed: rows exhausted or bounds reached; always released.
	cursorConsumed
)

// Cursor is a single-pass, single-consumer lazy sequence over the rows of a
// running statement. Rows are materialized one at a time, on demand.
//
// A Cursor is not safe for concurrent use.
type Cursor[T any] struct {
	ctx    context.Context
	reader *rowReader[T]
	bounds RowBounds
	logFn  func(messages ...any)
	// owner, when set, is an executor opened for this cursor alone; it is
	// closed with the cursor.
	owner *QueryExecutor

	wrapper           objectWrapperHandler[T]
	iter              CursorIterator[T]
	iteratorRetrieved bool
	status            cursorStatus
	// indexWithRowBound is the raw position of the last fetched row, offset included.
	indexWithRowBound int
}

func newCursor[T any](ctx context.Context, rs *resultSet, row rowValue[T], bounds RowBounds, logFn func(messages ...any)) *Cursor[T] {
	c := &Cursor[T]{
		ctx:               ctx,
		reader:            &rowReader[T]{rs: rs, row: row},
		bounds:            bounds,
		logFn:             logFn,
		indexWithRowBound: -1,
	}
	c.iter = CursorIterator[T]{cursor: c, index: -1}
	return c
}

// IsOpen reports whether rows are being consumed.
func (c *Cursor[T]) IsOpen() bool { return c.status == cursorOpen }

// IsConsumed reports whether every row within the bounds was read.
func (c *Cursor[T]) IsConsumed() bool { return c.status == cursorConsumed }

// CurrentIndex is the position of the last yielded row counted from the start
// of the result, offset included. Before the first row it is Offset()-1.
func (c *Cursor[T]) CurrentIndex() int {
	return c.bounds.offset + c.iter.index
}

// Iterator returns the cursor's only iterator.
func (c *Cursor[T]) Iterator() (*CursorIterator[T], error) {
	if c.iteratorRetrieved {
		return nil, ErrIteratorRetrieved
	}
	if c.isClosed() {
		return nil, ErrCursorClosed
	}
	c.iteratorRetrieved = true
	return &c.iter, nil
}

// All ranges over the cursor's rows. It takes the cursor's iterator, so it can
// only be used once; leaving the loop early closes the cursor.
func (c *Cursor[T]) All() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		it, err := c.Iterator()
		if err != nil {
			var zero T
			yield(zero, err)
			return
		}
		for {
			ok, err := it.HasNext()
			if err != nil {
				var zero T
				yield(zero, err)
				return
			}
			if !ok {
				return
			}
			v, err := it.Next()
			if !yield(v, err) {
				c.Close()
				return
			}
		}
	}
}

// Close releases the rows. Release failures are logged and dropped.
func (c *Cursor[T]) Close() {
	if c.isClosed() {
		return
	}
	if err := c.reader.rs.close(); err != nil {
		c.log("lazyorm: cursor release failed, ignored:", err)
	}
	c.status = cursorClosed
	if c.owner != nil {
		_ = c.owner.Close(context.Background(), false)
	}
}

func (c *Cursor[T]) isClosed() bool {
	return c.status == cursorClosed || c.status == cursorConsumed
}

func (c *Cursor[T]) readItemsCount() int {
	return c.indexWithRowBound + 1
}

// fetchNextUsingRowBound discards every row before the offset. The rows
// offer no native skip, so skipped rows are fully materialized.
func (c *Cursor[T]) fetchNextUsingRowBound() (T, error) {
	if c.bounds.limit == 0 && !c.isClosed() {
		c.consume()
		var zero T
		return zero, nil
	}
	result, err := c.fetchNextObjectFromDatabase()
	for err == nil && c.wrapper.fetched && c.indexWithRowBound < c.bounds.offset {
		result, err = c.fetchNextObjectFromDatabase()
	}
	return result, err
}

func (c *Cursor[T]) fetchNextObjectFromDatabase() (T, error) {
	var zero T
	if c.isClosed() {
		return zero, nil
	}

	c.wrapper.fetched = false
	c.status = cursorOpen
	if !c.reader.rs.closed {
		if err := c.reader.handleRows(c.ctx, DefaultRowBounds, &c.wrapper); err != nil {
			c.Close()
			return zero, executionError(err, "fetch next row")
		}
	}

	next := c.wrapper.result
	if c.wrapper.fetched {
		c.indexWithRowBound++
	}
	if !c.wrapper.fetched || c.bounds.bounded(c.readItemsCount()) {
		c.consume()
	}
	c.wrapper.result = zero
	return next, nil
}

func (c *Cursor[T]) consume() {
	c.Close()
	c.status = cursorConsumed
}

func (c *Cursor[T]) log(messages ...any) {
	if c.logFn != nil {
		c.logFn(messages...)
	}
}

// CursorIterator pulls rows from a Cursor with a one-row lookahead.
type CursorIterator[T any] struct {
	cursor *Cursor[T]
	// object holds the row fetched ahead by HasNext.
	object T
	// index counts rows returned by Next; -1 before the first.
	index int
}

// HasNext reports whether Next will yield a row. It fetches a row into the
// lookahead slot whenever that slot is empty.
func (it *CursorIterator[T]) HasNext() (bool, error) {
	c := it.cursor
	if !c.wrapper.fetched {
		obj, err := c.fetchNextUsingRowBound()
		if err != nil {
			return false, err
		}
		it.object = obj
	}
	return c.wrapper.fetched, nil
}

// Next yields the next row, or ErrNoSuchElement past the end of the sequence.
func (it *CursorIterator[T]) Next() (T, error) {
	c := it.cursor
	next := it.object

	if !c.wrapper.fetched {
		var err error
		next, err = c.fetchNextUsingRowBound()
		if err != nil {
			var zero T
			return zero, err
		}
	}

	if c.wrapper.fetched {
		var zero T
		c.wrapper.fetched = false
		it.object = zero
		it.index++
		return next, nil
	}
	var zero T
	return zero, ErrNoSuchElement
}

// Remove always fails: the sequence is read-only.
func (it *CursorIterator[T]) Remove() error {
	return ErrUnsupported
}
