//go:build integration

package pgxtx_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	pgmodule "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/risetechapps/jobchain/txn"
	"github.com/risetechapps/jobchain/txn/pgxtx"
)

func setupPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := pgmodule.Run(ctx,
		"postgres:16-alpine",
		pgmodule.WithDatabase("jobchain_test"),
		pgmodule.WithUsername("test"),
		pgmodule.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if termErr := container.Terminate(ctx); termErr != nil {
			t.Logf("terminate container: %v", termErr)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("get connection string: %v", err)
	}
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	if _, err := pool.Exec(ctx, `CREATE TABLE orders (id TEXT PRIMARY KEY)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	return pool
}

func TestIntegration_SavepointRollbackKeepsOuterHooks(t *testing.T) {
	pool := setupPool(t)
	m := txn.NewManager()
	ctx := context.Background()
	var hooks []string

	err := pgxtx.RunInTx(ctx, pool, m, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `INSERT INTO orders (id) VALUES ('outer')`); err != nil {
			return err
		}
		m.AfterCommit(ctx, func(context.Context) { hooks = append(hooks, "outer") })

		inner := pgxtx.RunInTx(ctx, tx, m, func(ctx context.Context, sp pgx.Tx) error {
			_, _ = sp.Exec(ctx, `INSERT INTO orders (id) VALUES ('inner')`)
			m.AfterCommit(ctx, func(context.Context) { hooks = append(hooks, "inner") })
			return errors.New("abort savepoint")
		})
		if inner == nil {
			t.Error("inner error lost")
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(hooks) != 1 || hooks[0] != "outer" {
		t.Errorf("hooks = %v, want [outer]", hooks)
	}
	var n int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM orders`).Scan(&n); err != nil || n != 1 {
		t.Errorf("orders = %d, %v", n, err)
	}
}
