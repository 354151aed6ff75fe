package pgxtx_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"

	"github.com/risetechapps/jobchain/txn"
	"github.com/risetechapps/jobchain/txn/pgxtx"
)

// fakeTx records how the transaction ended.
type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (f *fakeTx) Commit(context.Context) error {
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	if !f.committed {
		f.rolledBack = true
	}
	return nil
}

type fakeConn struct{ tx *fakeTx }

func (c *fakeConn) Begin(context.Context) (pgx.Tx, error) {
	c.tx = &fakeTx{}
	return c.tx, nil
}

func TestRunInTx_CommitThenHooks(t *testing.T) {
	m := txn.NewManager()
	conn := &fakeConn{}
	var committedFirst bool

	err := pgxtx.RunInTx(context.Background(), conn, m, func(ctx context.Context, _ pgx.Tx) error {
		m.AfterCommit(ctx, func(context.Context) { committedFirst = conn.tx.committed })
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if !committedFirst {
		t.Error("hook ran before the database commit")
	}
}

func TestRunInTx_ErrorRollsBack(t *testing.T) {
	m := txn.NewManager()
	conn := &fakeConn{}
	boom := errors.New("boom")
	var ran bool

	err := pgxtx.RunInTx(context.Background(), conn, m, func(ctx context.Context, _ pgx.Tx) error {
		m.AfterCommit(ctx, func(context.Context) { ran = true })
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}
	if ran || !conn.tx.rolledBack {
		t.Errorf("ran = %v, rolledBack = %v", ran, conn.tx.rolledBack)
	}
}

func TestRunInTx_NestedHooksWaitForOuter(t *testing.T) {
	m := txn.NewManager()
	outer, inner := &fakeConn{}, &fakeConn{}
	var ran bool

	err := pgxtx.RunInTx(context.Background(), outer, m, func(ctx context.Context, _ pgx.Tx) error {
		err := pgxtx.RunInTx(ctx, inner, m, func(ctx context.Context, _ pgx.Tx) error {
			if d := m.Depth(ctx); d != 2 {
				t.Errorf("depth = %d, want 2", d)
			}
			m.AfterCommit(ctx, func(context.Context) { ran = true })
			return nil
		})
		if ran {
			t.Error("hook ran at inner commit")
		}
		return err
	})
	if err != nil || !ran {
		t.Errorf("err = %v, ran = %v", err, ran)
	}
}
