package bunstore

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"strings"

	"github.com/uptrace/bun"

	"github.com/risetechapps/jobchain/dlq"
	"github.com/risetechapps/jobchain/task"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var (
	_ task.Store = (*Store)(nil)
	_ dlq.Store  = (*Store)(nil)
)

// Store keeps task records and dead letter entries in PostgreSQL.
type Store struct {
	db     bun.IDB
	logger *slog.Logger
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// New returns a store over db. db may be a *bun.DB or a bun.Tx; in the
// latter case every write joins the caller's transaction.
func New(db bun.IDB, opts ...Option) *Store {
	s := &Store{db: db, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB returns the underlying handle.
func (s *Store) DB() bun.IDB { return s.db }

// Migrate applies the embedded SQL migrations that have not run yet.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS jobchain_migrations (
			filename TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("jobchain/bun: create migrations table: %w", err)
	}

	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("jobchain/bun: read migrations: %w", err)
	}
	slices.SortFunc(entries, func(a, b fs.DirEntry) int { return strings.Compare(a.Name(), b.Name()) })

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}

		var applied bool
		err = s.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM jobchain_migrations WHERE filename = ?)`, name,
		).Scan(&applied)
		if err != nil {
			return fmt.Errorf("jobchain/bun: check migration %s: %w", name, err)
		}
		if applied {
			continue
		}

		data, err := fs.ReadFile(migrationsFS, "migrations/"+name)
		if err != nil {
			return fmt.Errorf("jobchain/bun: read migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("jobchain/bun: execute migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO jobchain_migrations (filename) VALUES (?)`, name); err != nil {
			return fmt.Errorf("jobchain/bun: record migration %s: %w", name, err)
		}
		s.logger.Info("applied migration", slog.String("file", name))
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	var one int
	return s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one)
}

// Close is a no-op because the caller owns the database handle.
func (s *Store) Close() error { return nil }
