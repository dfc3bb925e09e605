package lazyorm

import "context"

// QB represents a query builder.
// Consumers hold a *QB reference in variables for incremental building.
type QB struct {
	db      *DB
	model   Model
	conds   []Condition
	orderBy []Order
	groupBy []string
	limit   int
	offset  int
}

// Where adds conditions to the query.
func (qb *QB) Where(conds ...Condition) *QB {
	qb.conds = append(qb.conds, conds...)
	return qb
}

// Limit sets the limit for the query.
func (qb *QB) Limit(limit int) *QB {
	qb.limit = limit
	return qb
}

// Offset sets the offset for the query.
func (qb *QB) Offset(offset int) *QB {
	qb.offset = offset
	return qb
}

// OrderBy adds an order clause to the query.
func (qb *QB) OrderBy(column, dir string) *QB {
	qb.orderBy = append(qb.orderBy, Order{column: column, dir: dir})
	return qb
}

// GroupBy adds a group by clause to the query.
func (qb *QB) GroupBy(columns ...string) *QB {
	qb.groupBy = append(qb.groupBy, columns...)
	return qb
}

// ReadOne scans the first matching row into the builder's model. When the
// model has lazy associations the returned value is a *Proxy over it,
// otherwise the model itself.
func (qb *QB) ReadOne(ctx context.Context) (Model, error) {
	if err := validate(ActionReadOne, qb.model); err != nil {
		return nil, err
	}
	q := qb.query(ActionReadOne)
	q.Limit = 1 // Force limit 1
	stmt := qb.statement(q.Action.String(), q, func() Model { return qb.model })

	ex, release := qb.db.executor()
	defer release()
	list, err := ex.Query(ctx, stmt, qb.model, DefaultRowBounds, nil)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, ErrNotFound
	}
	return list[0], nil
}

// ReadAll executes the query and hands every row to each as it is read.
func (qb *QB) ReadAll(ctx context.Context, factory func() Model, each func(Model)) error {
	if err := validate(ActionReadAll, qb.model); err != nil {
		return err
	}
	q := qb.query(ActionReadAll)
	stmt := qb.statement(q.Action.String(), q, factory)

	ex, release := qb.db.executor()
	defer release()
	_, err := ex.Query(ctx, stmt, qb.model, DefaultRowBounds, ResultHandlerFunc[Model](func(rc ResultContext[Model]) {
		if each != nil {
			each(rc.Object())
		}
	}))
	return err
}

// Cursor executes the query and streams its rows through a Cursor.
// The caller closes the cursor unless it reads it to the end.
func (qb *QB) Cursor(ctx context.Context, factory func() Model) (*Cursor[Model], error) {
	if err := validate(ActionReadAll, qb.model); err != nil {
		return nil, err
	}
	stmt := qb.statement("cursor", qb.query(ActionReadAll), factory)

	// A transaction's executor outlives the cursor; an executor opened here
	// stays open for the nested loads of later rows and closes with the cursor.
	if qb.db.exec != nil {
		return qb.db.exec.QueryCursor(ctx, stmt, qb.model, DefaultRowBounds)
	}
	ex := qb.db.NewExecutor()
	cur, err := ex.QueryCursor(ctx, stmt, qb.model, DefaultRowBounds)
	if err != nil {
		_ = ex.Close(ctx, false)
		return nil, err
	}
	cur.owner = ex
	return cur, nil
}

func (qb *QB) query(action Action) Query {
	return Query{
		Action:     action,
		Table:      qb.model.TableName(),
		Conditions: qb.conds,
		OrderBy:    qb.orderBy,
		GroupBy:    qb.groupBy,
		Limit:      qb.limit,
		Offset:     qb.offset,
	}
}

// statement wraps q with a result map built from factory and the
// associations the builder's model declares.
func (qb *QB) statement(op string, q Query, factory func() Model) *Statement {
	rm := &ResultMap{ID: q.Table, New: factory}
	if a, ok := qb.model.(Associated); ok {
		rm.Associations = a.Associations()
	}
	return &Statement{
		ID:     q.Table + "." + op,
		Source: QuerySource{Query: q, Planner: qb.db.planner},
		Result: rm,
	}
}
