package store

import (
	"context"

	"github.com/risetechapps/jobchain/dlq"
	"github.com/risetechapps/jobchain/task"
)

// Store is the aggregate persistence interface.
type Store interface {
	task.Store
	dlq.Store

	// Migrate prepares the backend. It is safe to call repeatedly.
	Migrate(ctx context.Context) error

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close releases the backend connection.
	Close() error
}
