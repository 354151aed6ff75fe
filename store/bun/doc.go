// Package bunstore implements store.Store on PostgreSQL through the Bun ORM.
//
// The caller owns the *bun.DB lifecycle and bunstore never closes it:
//
//	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
//	db := bun.NewDB(sqldb, pgdialect.New())
//	s := bunstore.New(db)
//	if err := s.Migrate(ctx); err != nil { ... }
//
// Task records survive restarts, but runnables do not: a record dequeued by
// a process that never saw its runnable fails with ErrRunnableNotFound.
package bunstore
