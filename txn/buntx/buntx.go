// Package buntx couples a bun database transaction to a txn.Manager frame,
// so chains triggered inside the transaction are submitted only after the
// database commit succeeds.
package buntx

import (
	"context"
	"database/sql"

	"github.com/uptrace/bun"

	"github.com/risetechapps/jobchain/txn"
)

// RunInTx runs fn in a database transaction on db inside a frame of m.
// When the database commit succeeds the frame commits and its after-commit
// hooks run; otherwise the frame rolls back and its hooks are dropped.
// db may itself be a bun.Tx, in which case bun uses a savepoint and the
// frame nests inside the caller's frame.
func RunInTx(ctx context.Context, db bun.IDB, m *txn.Manager, opts *sql.TxOptions, fn func(ctx context.Context, tx bun.Tx) error) (err error) {
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

	if err = db.RunInTx(frameCtx, opts, fn); err != nil {
		return err
	}
	return frame.Commit()
}
