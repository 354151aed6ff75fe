// Package memory provides an in-process implementation of store.Store.
package memory

import (
	"context"
	"sync"

	"github.com/risetechapps/jobchain/dlq"
	"github.com/risetechapps/jobchain/task"
)

// We can't import store here (import cycle), so we verify each subsystem.
var (
	_ task.Store = (*Store)(nil)
	_ dlq.Store  = (*Store)(nil)
)

// Store keeps task records and dead letter entries in maps.
// Safe for concurrent access. Intended for tests, development and single
// process deployments.
type Store struct {
	mu sync.RWMutex

	tasks map[string]*task.Task
	dlqs  map[string]*dlq.Entry
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		tasks: make(map[string]*task.Task),
		dlqs:  make(map[string]*dlq.Entry),
	}
}

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// page applies offset and limit to an already sorted slice.
func page[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
