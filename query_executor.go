package lazyorm

import (
	"context"
	"math"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// BatchUpdateReturnValue is what Update returns for an update it only queued.
const BatchUpdateReturnValue = math.MinInt32 + 1002

// QueryExecutor runs statements over one Conn. It materializes rows as a
// list or through a Cursor, keeps a local result cache keyed by CacheKey, and
// defers association loads configured as lazy.
//
// A QueryExecutor is not safe for concurrent use; open one per session or
// transaction.
type QueryExecutor struct {
	id    uuid.UUID
	cfg   *Configuration
	conn  Conn
	cache *localCache
	batch *batch

	// queryStack counts the statements and row materializations in flight;
	// zero means no statement is running.
	queryStack int
	closed     bool
	// deferred holds the registries of the rows being materialized.
	deferred map[Model]*ResultLoaderMap
	// fills are eager associations whose query was already running further
	// up the stack; they are assigned from the cache once the stack unwinds.
	fills []deferredFill
}

type deferredFill struct {
	owner    PropertyAccessor
	property string
	key      CacheKey
	kind     ResultKind
}

// NewQueryExecutor returns an open executor over conn. A nil cfg means NewConfiguration().
func NewQueryExecutor(cfg *Configuration, conn Conn) *QueryExecutor {
	if cfg == nil {
		cfg = NewConfiguration()
	}
	e := &QueryExecutor{
		id:       uuid.New(),
		cfg:      cfg,
		conn:     conn,
		cache:    newLocalCache(),
		deferred: make(map[Model]*ResultLoaderMap),
	}
	if cfg.ExecutorType == ExecutorBatch {
		e.batch = &batch{}
	}
	return e
}

// ID identifies the executor in log lines.
func (e *QueryExecutor) ID() string { return e.id.String() }

// Config returns the configuration the executor reads its settings from.
func (e *QueryExecutor) Config() *Configuration { return e.cfg }

// IsClosed reports whether Close was called.
func (e *QueryExecutor) IsClosed() bool { return e.closed }

// Update runs an insert, update or delete. It always clears the local cache.
// A batch executor queues the update and returns BatchUpdateReturnValue.
func (e *QueryExecutor) Update(ctx context.Context, stmt *Statement, param any) (int64, error) {
	if e.closed {
		return 0, ErrExecutorClosed
	}
	e.cache.clear()
	plan, err := stmt.bind(param)
	if err != nil {
		return 0, err
	}
	if e.batch != nil {
		e.batch.add(stmt, plan)
		return BatchUpdateReturnValue, nil
	}
	n, err := e.conn.Exec(ctx, plan.Query, plan.Args...)
	if err != nil {
		return 0, executionError(err, "update "+stmt.ID)
	}
	return n, nil
}

// Query runs stmt and materializes every row within bounds into a list.
// With a non-nil handler the rows go to the handler instead, the returned
// list is nil and the local cache is not used.
func (e *QueryExecutor) Query(ctx context.Context, stmt *Statement, param any, bounds RowBounds, handler ResultHandler[Model]) ([]Model, error) {
	if e.closed {
		return nil, ErrExecutorClosed
	}
	plan, err := stmt.bind(param)
	if err != nil {
		return nil, err
	}
	return e.query(ctx, stmt, plan, bounds, handler, e.cacheKey(stmt, plan, bounds))
}

// QueryCursor runs stmt and returns a Cursor over its rows. No row is read
// before the cursor asks for it. The cursor does not use the local cache.
func (e *QueryExecutor) QueryCursor(ctx context.Context, stmt *Statement, param any, bounds RowBounds) (*Cursor[Model], error) {
	if e.closed {
		return nil, ErrExecutorClosed
	}
	plan, err := stmt.bind(param)
	if err != nil {
		return nil, err
	}
	rows, err := e.open(ctx, stmt, plan)
	if err != nil {
		return nil, err
	}
	return newCursor[Model](ctx, newResultSet(rows), e.rowValue(stmt), bounds, e.cfg.logFn), nil
}

// FlushStatements runs the queued updates of a batch executor.
func (e *QueryExecutor) FlushStatements(ctx context.Context) ([]BatchResult, error) {
	if e.closed {
		return nil, ErrExecutorClosed
	}
	if e.batch == nil || e.batch.size() == 0 {
		return nil, nil
	}
	return e.batch.flush(ctx, e.conn)
}

// Commit clears the local cache and flushes queued updates. When required and
// the connection is bound to a transaction, the transaction is committed.
func (e *QueryExecutor) Commit(ctx context.Context, required bool) error {
	if e.closed {
		return errors.Wrap(ErrExecutorClosed, "cannot commit")
	}
	e.cache.clear()
	if _, err := e.FlushStatements(ctx); err != nil {
		return err
	}
	if tx, ok := e.conn.(TxBoundConn); ok && required {
		if err := tx.Commit(); err != nil {
			return executionError(err, "commit")
		}
	}
	return nil
}

// Rollback clears the local cache and drops queued updates. When required and
// the connection is bound to a transaction, the transaction is rolled back.
func (e *QueryExecutor) Rollback(ctx context.Context, required bool) error {
	if e.closed {
		return errors.Wrap(ErrExecutorClosed, "cannot rollback")
	}
	return e.rollback(required)
}

func (e *QueryExecutor) rollback(required bool) error {
	e.cache.clear()
	if e.batch != nil {
		e.batch.discard()
	}
	if tx, ok := e.conn.(TxBoundConn); ok && required {
		if err := tx.Rollback(); err != nil {
			return executionError(err, "rollback")
		}
	}
	return nil
}

// BuildCacheKey returns the key stmt bound to param would be cached under:
// statement id, offset, limit, SQL, every argument in order and the
// configured environment.
func (e *QueryExecutor) BuildCacheKey(stmt *Statement, param any, bounds RowBounds) (CacheKey, error) {
	if e.closed {
		return CacheKey{}, ErrExecutorClosed
	}
	plan, err := stmt.bind(param)
	if err != nil {
		return CacheKey{}, err
	}
	return e.cacheKey(stmt, plan, bounds), nil
}

// IsCached reports whether a finished result of stmt is cached under key.
// A query still running under key does not count.
func (e *QueryExecutor) IsCached(stmt *Statement, key CacheKey) (bool, error) {
	if e.closed {
		return false, ErrExecutorClosed
	}
	_, ok := e.cache.list(key)
	return ok, nil
}

// ClearLocalCache drops every cached result.
func (e *QueryExecutor) ClearLocalCache() error {
	if e.closed {
		return ErrExecutorClosed
	}
	e.cache.clear()
	return nil
}

// DeferLoad registers a load of property onto owner, a row being materialized
// by the running statement. Nothing runs now: the load runs on first access
// through the Proxy the row is returned as.
func (e *QueryExecutor) DeferLoad(stmt *Statement, owner Model, property string, param any, key CacheKey, kind ResultKind) error {
	if e.closed {
		return ErrExecutorClosed
	}
	if e.queryStack == 0 {
		return errors.Wrapf(ErrNoExecutionInFlight, "defer %s", property)
	}
	if stmt == nil || owner == nil {
		return errors.Wrap(ErrValidation, "deferred load needs a statement and an owner")
	}
	loader := e.deferred[owner]
	if loader == nil {
		loader = NewResultLoaderMap(e, e.cfg)
		e.deferred[owner] = loader
	}
	return loader.Add(&LoadPair{
		Property:    property,
		StatementID: stmt.ID,
		Param:       param,
		Kind:        kind,
		stmt:        stmt,
		key:         key,
	})
}

// Close rolls back when forceRollback is set and releases the local cache.
// It does not close the connection, which belongs to the caller. Calling
// Close again does nothing.
func (e *QueryExecutor) Close(ctx context.Context, forceRollback bool) error {
	if e.closed {
		return nil
	}
	err := e.rollback(forceRollback)
	e.closed = true
	e.cache.clear()
	clear(e.deferred)
	e.fills = nil
	if err != nil {
		e.log("rollback on close failed:", err)
	}
	return err
}

func (e *QueryExecutor) query(ctx context.Context, stmt *Statement, plan Plan, bounds RowBounds, handler ResultHandler[Model], key CacheKey) ([]Model, error) {
	if e.closed {
		return nil, ErrExecutorClosed
	}
	if e.queryStack == 0 && stmt.FlushCache {
		e.cache.clear()
	}

	e.queryStack++
	var (
		list   []Model
		cached bool
		err    error
	)
	if handler == nil {
		list, cached = e.cache.list(key)
	}
	if !cached {
		list, err = e.queryFromDatabase(ctx, stmt, plan, bounds, handler, key)
	}
	e.queryStack--

	if e.queryStack == 0 {
		if err == nil {
			err = e.fillDeferred()
		}
		e.fills = nil
		clear(e.deferred)
		if e.cfg.LocalCacheScope == ScopeStatement {
			e.cache.clear()
		}
	}
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (e *QueryExecutor) queryFromDatabase(ctx context.Context, stmt *Statement, plan Plan, bounds RowBounds, handler ResultHandler[Model], key CacheKey) ([]Model, error) {
	e.cache.put(key, executionPlaceholder{})
	list, err := e.doQuery(ctx, stmt, plan, bounds, handler)
	e.cache.remove(key)
	if err != nil {
		return nil, err
	}
	if handler == nil {
		e.cache.put(key, list)
	}
	return list, nil
}

func (e *QueryExecutor) doQuery(ctx context.Context, stmt *Statement, plan Plan, bounds RowBounds, handler ResultHandler[Model]) ([]Model, error) {
	rows, err := e.open(ctx, stmt, plan)
	if err != nil {
		return nil, err
	}
	rs := newResultSet(rows)
	defer func() {
		if err := rs.close(); err != nil {
			e.log("result release failed, ignored:", err)
		}
	}()

	reader := &rowReader[Model]{rs: rs, row: e.rowValue(stmt)}
	if handler != nil {
		if err := reader.handleRows(ctx, bounds, handler); err != nil {
			return nil, executionError(err, "query "+stmt.ID)
		}
		return nil, nil
	}
	h := &listHandler[Model]{}
	if err := reader.handleRows(ctx, bounds, h); err != nil {
		return nil, executionError(err, "query "+stmt.ID)
	}
	return h.list, nil
}

// open flushes queued updates so the query sees them, then runs the query.
func (e *QueryExecutor) open(ctx context.Context, stmt *Statement, plan Plan) (Rows, error) {
	if e.batch != nil {
		if _, err := e.FlushStatements(ctx); err != nil {
			return nil, err
		}
	}
	rows, err := e.conn.Query(ctx, plan.Query, plan.Args...)
	if err != nil {
		return nil, executionError(err, "query "+stmt.ID)
	}
	return rows, nil
}

func (e *QueryExecutor) rowValue(stmt *Statement) rowValue[Model] {
	return func(ctx context.Context, rows Rows) (Model, bool, error) {
		return e.materialize(ctx, stmt, rows)
	}
}

// materialize converts the current row and fills its associations. A row
// left with pending loads is returned as a *Proxy.
func (e *QueryExecutor) materialize(ctx context.Context, stmt *Statement, rows Rows) (Model, bool, error) {
	rm := stmt.Result
	m, matched, err := e.cfg.materializer().Materialize(rows, rm)
	if err != nil || !matched {
		return nil, matched, err
	}
	if rm == nil || len(rm.Associations) == 0 {
		return m, true, nil
	}

	e.queryStack++
	for _, a := range rm.Associations {
		if err = e.associate(ctx, m, a); err != nil {
			break
		}
	}
	e.queryStack--
	loader := e.deferred[m]
	delete(e.deferred, m)

	// A cursor row is the outermost materialization.
	if e.queryStack == 0 {
		if err == nil {
			err = e.fillDeferred()
		}
		e.fills = nil
	}
	if err != nil {
		return nil, false, err
	}
	if loader != nil && loader.Size() > 0 {
		return NewProxy(m, loader, e.cfg), true, nil
	}
	return m, true, nil
}

// associate fills property a of m, or defers it when a is lazy. The nested
// parameter is the owner's a.Column, its primary key when a.Column is empty.
// A nil value leaves the property untouched.
func (e *QueryExecutor) associate(ctx context.Context, m Model, a Association) error {
	nested, err := e.cfg.Statement(a.Select)
	if err != nil {
		return errors.Wrapf(err, "association %s", a.Property)
	}
	column := a.Column
	if column == "" {
		if pk, ok := primaryKey(m.Schema()); ok {
			column = pk.Name
		}
	}
	param, ok := columnValue(m, column)
	if !ok {
		return errors.Wrapf(ErrValidation, "association %s: no column %q in %s", a.Property, column, m.TableName())
	}
	if param == nil {
		return nil
	}
	plan, err := nested.bind(param)
	if err != nil {
		return err
	}
	key := e.cacheKey(nested, plan, DefaultRowBounds)

	if a.lazy(e.cfg) {
		return e.DeferLoad(nested, m, a.Property, param, key, a.Kind)
	}

	acc, ok := m.(PropertyAccessor)
	if !ok {
		return errors.Wrapf(ErrNoPropertyAccessor, "%T", m)
	}
	if e.cache.inFlight(key) {
		e.fills = append(e.fills, deferredFill{owner: acc, property: a.Property, key: key, kind: a.Kind})
		return nil
	}
	list, err := e.query(ctx, nested, plan, DefaultRowBounds, nil, key)
	if err != nil {
		return err
	}
	v, err := extract(list, a.Kind)
	if err != nil {
		return errors.Wrapf(err, "association %s", a.Property)
	}
	return acc.SetProperty(a.Property, v)
}

// fillDeferred assigns every queued fill from the rows its query cached.
// A fill whose query streamed into a handler has nothing cached and is skipped.
func (e *QueryExecutor) fillDeferred() error {
	fills := e.fills
	e.fills = nil
	for _, f := range fills {
		list, ok := e.cache.list(f.key)
		if !ok {
			continue
		}
		v, err := extract(list, f.kind)
		if err != nil {
			return errors.Wrapf(err, "association %s", f.property)
		}
		if err := f.owner.SetProperty(f.property, v); err != nil {
			return errors.Wrapf(err, "association %s", f.property)
		}
	}
	return nil
}

// loadPair runs a deferred load and shapes its rows for the property.
func (e *QueryExecutor) loadPair(ctx context.Context, pair *LoadPair) (any, error) {
	if e.closed {
		return nil, ErrExecutorClosed
	}
	stmt := pair.stmt
	if stmt == nil {
		var err error
		if stmt, err = e.cfg.Statement(pair.StatementID); err != nil {
			return nil, err
		}
	}
	plan, err := stmt.bind(pair.Param)
	if err != nil {
		return nil, err
	}
	key := pair.key
	if key.IsZero() {
		key = e.cacheKey(stmt, plan, DefaultRowBounds)
	}
	list, err := e.query(ctx, stmt, plan, DefaultRowBounds, nil, key)
	if err != nil {
		return nil, err
	}
	return extract(list, pair.Kind)
}

func (e *QueryExecutor) cacheKey(stmt *Statement, plan Plan, bounds RowBounds) CacheKey {
	key := NewCacheKey(stmt.ID, bounds.offset, bounds.limit, plan.Query)
	key.UpdateAll(plan.Args...)
	key.Update(e.cfg.Environment)
	return key
}

func (e *QueryExecutor) log(messages ...any) {
	e.cfg.log(append([]any{"lazyorm: executor", e.id.String()}, messages...)...)
}
