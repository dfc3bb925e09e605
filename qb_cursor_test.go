package lazyorm

import (
	"context"
	"testing"
)

type emptyRows struct{}

func (emptyRows) Next() bool                 { return false }
func (emptyRows) Scan(...any) error          { return nil }
func (emptyRows) Close() error               { return nil }
func (emptyRows) Err() error                 { return nil }
func (emptyRows) Columns() ([]string, error) { return nil, nil }

type emptyConn struct{}

func (emptyConn) Exec(context.Context, string, ...any) (int64, error) { return 0, nil }
func (emptyConn) Query(context.Context, string, ...any) (Rows, error) { return emptyRows{}, nil }

type selectPlanner struct{}

func (selectPlanner) Plan(q Query, m Model) (Plan, error) {
	return Plan{Mode: q.Action, Query: "SELECT * FROM " + q.Table}, nil
}

type tag struct{ Name string }

func (t *tag) TableName() string { return "tags" }
func (t *tag) Schema() []Field   { return []Field{{Name: "name", Type: TypeText}} }
func (t *tag) Values() []any     { return []any{t.Name} }
func (t *tag) Pointers() []any   { return []any{&t.Name} }

func TestQB_CursorClosesItsExecutor(t *testing.T) {
	ctx := context.Background()
	db := New(emptyConn{}, selectPlanner{})
	factory := func() Model { return &tag{} }

	t.Run("Close", func(t *testing.T) {
		cur, err := db.Query(&tag{}).Cursor(ctx, factory)
		if err != nil {
			t.Fatal(err)
		}
		ex := cur.owner
		if ex == nil || ex.IsClosed() {
			t.Fatal("Expected an open executor owned by the cursor")
		}
		cur.Close()
		if !ex.IsClosed() {
			t.Error("Expected closing the cursor to close its executor")
		}
	})

	t.Run("Consumed", func(t *testing.T) {
		cur, err := db.Query(&tag{}).Cursor(ctx, factory)
		if err != nil {
			t.Fatal(err)
		}
		ex := cur.owner
		for _, err := range cur.All() {
			if err != nil {
				t.Fatal(err)
			}
		}
		if !cur.IsConsumed() || !ex.IsClosed() {
			t.Error("Expected reading to the end to close the executor")
		}
	})

	t.Run("Transaction", func(t *testing.T) {
		shared := db.NewExecutor()
		defer shared.Close(ctx, false)
		txDB := &DB{conn: db.conn, planner: db.planner, cfg: db.cfg, exec: shared}

		cur, err := txDB.Query(&tag{}).Cursor(ctx, factory)
		if err != nil {
			t.Fatal(err)
		}
		cur.Close()
		if cur.owner != nil || shared.IsClosed() {
			t.Error("Expected a transaction's executor to outlive the cursor")
		}
	})
}
