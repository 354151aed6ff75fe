// Package event provides the in-process event bus that triggers chains.
// Listeners subscribe to a name and receive the published arguments;
// chain.ToListener produces a value that can be subscribed directly.
package event

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/risetechapps/jobchain/id"
)

// Listener handles one published event.
type Listener func(ctx context.Context, args ...any) error

// Bus fans published events out to subscribed listeners.
// It is safe for concurrent use.
type Bus struct {
	mu        sync.RWMutex
	listeners map[string][]Listener
	logger    *slog.Logger
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the logger used for listener errors.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bus) { b.logger = l }
}

// NewBus creates an empty event bus.
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		listeners: make(map[string][]Listener),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers l for events named name. Listeners run in
// subscription order.
func (b *Bus) Subscribe(name string, l Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners[name] = append(b.listeners[name], l)
}

// Publish calls every listener of name with args in the calling goroutine.
// All listeners run even when some fail; their errors are joined.
func (b *Bus) Publish(ctx context.Context, name string, args ...any) (*Event, error) {
	b.mu.RLock()
	ls := append([]Listener(nil), b.listeners[name]...)
	b.mu.RUnlock()

	evt := &Event{
		ID:        id.NewEventID(),
		Name:      name,
		Args:      args,
		Listeners: len(ls),
		CreatedAt: time.Now().UTC(),
	}

	var errs []error
	for i, l := range ls {
		if err := call(ctx, l, args); err != nil {
			b.logger.Warn("event listener failed",
				slog.String("event", name),
				slog.String("event_id", evt.ID.String()),
				slog.Int("listener", i),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("event %q listener %d: %w", name, i, err))
		}
	}
	return evt, errors.Join(errs...)
}

func call(ctx context.Context, l Listener, args []any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panic: %v", r)
		}
	}()
	return l(ctx, args...)
}

// Names returns the event names that have listeners, sorted.
func (b *Bus) Names() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.listeners))
	for name := range b.listeners {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of listeners subscribed to name.
func (b *Bus) Count(name string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners[name])
}
