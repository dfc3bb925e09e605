package lazyorm

import "context"

// Tx executes a function within a transaction. Every operation of the DB fn
// receives runs on one executor bound to the transaction, so reads inside fn
// share its local cache until a write clears it.
func (db *DB) Tx(ctx context.Context, fn func(tx *DB) error) error {
	txConn, ok := db.conn.(TxConn)
	if !ok {
		return ErrNoTxSupport
	}

	bound, err := txConn.BeginTx(ctx)
	if err != nil {
		return err
	}

	ex := NewQueryExecutor(db.cfg, bound)
	txDB := &DB{
		conn:    bound,
		planner: db.planner,
		cfg:     db.cfg,
		exec:    ex,
	}

	if err := fn(txDB); err != nil {
		_ = ex.Close(ctx, true)
		return err
	}

	if err := ex.Commit(ctx, true); err != nil {
		_ = ex.Close(ctx, true)
		return err
	}
	return ex.Close(ctx, false)
}
