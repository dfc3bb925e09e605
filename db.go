package lazyorm

import (
	"context"
	"io"
)

// DB represents a database connection.
// Consumers instantiate it via New().
type DB struct {
	conn    Conn
	planner Planner
	cfg     *Configuration
	// exec is set for a DB bound to a transaction; otherwise every operation
	// runs on a fresh executor.
	exec *QueryExecutor
}

// New creates a new DB instance. Deferred loads of the models it returns run
// on executors over conn.
func New(conn Conn, planner Planner) *DB {
	cfg := NewConfiguration()
	cfg.ExecutorFactory = func() (*QueryExecutor, error) {
		return NewQueryExecutor(cfg, conn), nil
	}
	return &DB{
		conn:    conn,
		planner: planner,
		cfg:     cfg,
	}
}

// Config returns the configuration shared by every executor of db.
func (db *DB) Config() *Configuration {
	return db.cfg
}

// NewExecutor opens an executor over db's connection. The caller closes it.
func (db *DB) NewExecutor() *QueryExecutor {
	return NewQueryExecutor(db.cfg, db.conn)
}

func (db *DB) executor() (*QueryExecutor, func()) {
	if db.exec != nil {
		return db.exec, func() {}
	}
	ex := db.NewExecutor()
	return ex, func() { _ = ex.Close(context.Background(), false) }
}

// Create inserts a new model into the database.
func (db *DB) Create(ctx context.Context, m Model) error {
	if err := validate(ActionCreate, m); err != nil {
		return err
	}
	q := Query{
		Action:  ActionCreate,
		Table:   m.TableName(),
		Columns: columnNames(m),
		Values:  m.Values(),
	}
	return db.update(ctx, q, m)
}

// Update updates a model in the database.
func (db *DB) Update(ctx context.Context, m Model, conds ...Condition) error {
	if err := validate(ActionUpdate, m); err != nil {
		return err
	}
	q := Query{
		Action:     ActionUpdate,
		Table:      m.TableName(),
		Columns:    columnNames(m),
		Values:     m.Values(),
		Conditions: conds,
	}
	return db.update(ctx, q, m)
}

// Delete deletes a model from the database.
func (db *DB) Delete(ctx context.Context, m Model, conds ...Condition) error {
	if err := validate(ActionDelete, m); err != nil {
		return err
	}
	q := Query{
		Action:     ActionDelete,
		Table:      m.TableName(),
		Conditions: conds,
	}
	return db.update(ctx, q, m)
}

func (db *DB) update(ctx context.Context, q Query, m Model) error {
	stmt := &Statement{
		ID:     q.Table + "." + q.Action.String(),
		Source: QuerySource{Query: q, Planner: db.planner},
	}
	ex, release := db.executor()
	defer release()
	_, err := ex.Update(ctx, stmt, m)
	return err
}

// Query creates a new QB instance.
func (db *DB) Query(m Model) *QB {
	return &QB{
		db:    db,
		model: m,
	}
}

// Close closes the underlying connection if it supports it.
func (db *DB) Close() error {
	if c, ok := db.conn.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// RawConn returns the underlying connection.
func (db *DB) RawConn() Conn {
	return db.conn
}
