package lazyorm

// ResultContext is what a ResultHandler sees for each materialized row.
type ResultContext[T any] interface {
	// Object is the row just materialized.
	Object() T
	// Count is the number of rows handed to the handler so far, this one included.
	Count() int
	IsStopped() bool
	// Stop ends materialization after the current row.
	Stop()
}

// ResultHandler is invoked once per materialized row.
type ResultHandler[T any] interface {
	HandleResult(ctx ResultContext[T])
}

// ResultHandlerFunc adapts a function to ResultHandler.
type ResultHandlerFunc[T any] func(ctx ResultContext[T])

func (f ResultHandlerFunc[T]) HandleResult(ctx ResultContext[T]) { f(ctx) }

type resultContext[T any] struct {
	object  T
	count   int
	stopped bool
}

func (c *resultContext[T]) Object() T       { return c.object }
func (c *resultContext[T]) Count() int      { return c.count }
func (c *resultContext[T]) IsStopped() bool { return c.stopped }
func (c *resultContext[T]) Stop()           { c.stopped = true }

func (c *resultContext[T]) next(object T) {
	c.object = object
	c.count++
}

// listHandler collects every row, the list strategy of a query.
type listHandler[T any] struct {
	list []T
}

func (h *listHandler[T]) HandleResult(ctx ResultContext[T]) {
	h.list = append(h.list, ctx.Object())
}

// objectWrapperHandler is the single slot between the row reader and a cursor.
// It takes exactly one row and stops.
type objectWrapperHandler[T any] struct {
	result  T
	fetched bool
}

func (h *objectWrapperHandler[T]) HandleResult(ctx ResultContext[T]) {
	h.result = ctx.Object()
	ctx.Stop()
	h.fetched = true
}
