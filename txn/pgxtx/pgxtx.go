// Package pgxtx couples a pgx transaction to a txn.Manager frame.
package pgxtx

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/risetechapps/jobchain/txn"
)

// Beginner starts a transaction. *pgx.Conn, *pgxpool.Pool and pgx.Tx
// satisfy it; on a pgx.Tx the new transaction is a savepoint.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// RunInTx runs fn in a transaction begun on db inside a frame of m. The
// frame commits, running its after-commit hooks, only when the database
// commit succeeds.
func RunInTx(ctx context.Context, db Beginner, m *txn.Manager, fn func(ctx context.Context, tx pgx.Tx) error) (err error) {
	frameCtx, frame := m.Begin(ctx)
	defer func() {
		if p := recover(); p != nil {
			_ = frame.Rollback()
			panic(p)
		}
		if err != nil {
			_ = frame.Rollback()
		}
	}()

	err = pgx.BeginFunc(frameCtx, db, func(tx pgx.Tx) error {
		return fn(frameCtx, tx)
	})
	if err != nil {
		return err
	}
	return frame.Commit()
}
