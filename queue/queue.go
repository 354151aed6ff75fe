package queue

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/time/rate"
)

// Config defines per-queue rate limiting and concurrency.
type Config struct {
	// Name is the queue identifier (matches task.Task.Queue).
	Name string

	// MaxConcurrency limits how many chains from this queue may run at once
	// in the local pool. Zero means no queue-specific limit.
	MaxConcurrency int

	// RateLimit is the sustained number of chains per second that may start
	// from this queue. Zero disables rate limiting.
	RateLimit float64

	// RateBurst is the token bucket size. Defaults to 1 when RateLimit is
	// set.
	RateBurst int
}

type state struct {
	config  Config
	limiter *rate.Limiter
	active  int
}

func newState(cfg Config) *state {
	s := &state{config: cfg}
	if cfg.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), max(cfg.RateBurst, 1))
	}
	return s
}

// Stats is a point-in-time view of one queue.
type Stats struct {
	Name           string
	Active         int
	MaxConcurrency int
	RateLimit      float64
}

// Manager admits tasks per queue. Queues without a Config are unlimited.
// It is safe for concurrent use.
type Manager struct {
	mu     sync.Mutex
	queues map[string]*state
}

// NewManager creates a Manager with the given queue configurations.
func NewManager(configs ...Config) *Manager {
	m := &Manager{queues: make(map[string]*state, len(configs))}
	for _, cfg := range configs {
		m.queues[cfg.Name] = newState(cfg)
	}
	return m
}

// Acquire admits one task from queue when both the rate limit and the
// concurrency limit allow it. Every successful Acquire must be paired with
// a Release.
func (m *Manager) Acquire(queue string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.queues[queue]
	if s == nil {
		return true
	}
	if s.config.MaxConcurrency > 0 && s.active >= s.config.MaxConcurrency {
		return false
	}
	if s.limiter != nil && !s.limiter.Allow() {
		return false
	}
	s.active++
	return true
}

// Release returns the slot taken by Acquire.
func (m *Manager) Release(queue string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s := m.queues[queue]; s != nil && s.active > 0 {
		s.active--
	}
}

// Admit filters names down to the queues that can take at least one more
// task right now, without consuming tokens.
func (m *Manager) Admit(names []string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(names))
	for _, name := range names {
		s := m.queues[name]
		if s == nil {
			out = append(out, name)
			continue
		}
		if s.config.MaxConcurrency > 0 && s.active >= s.config.MaxConcurrency {
			continue
		}
		if s.limiter != nil && s.limiter.Tokens() < 1 {
			continue
		}
		out = append(out, name)
	}
	return out
}

// Wait blocks until queue's rate limiter grants a token or ctx ends.
// Queues without a rate limit return immediately.
func (m *Manager) Wait(ctx context.Context, queue string) error {
	m.mu.Lock()
	s := m.queues[queue]
	m.mu.Unlock()
	if s == nil || s.limiter == nil {
		return ctx.Err()
	}
	return s.limiter.Wait(ctx)
}

// Configure creates or replaces a queue configuration, keeping the
// current active count.
func (m *Manager) Configure(cfg Config) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := newState(cfg)
	if prev := m.queues[cfg.Name]; prev != nil {
		s.active = prev.active
	}
	m.queues[cfg.Name] = s
}

// ActiveCount returns the number of admitted, unreleased tasks of queue.
func (m *Manager) ActiveCount(queue string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s := m.queues[queue]; s != nil {
		return s.active
	}
	return 0
}

// Stats returns a snapshot of every configured queue, sorted by name.
func (m *Manager) Stats() []Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Stats, 0, len(m.queues))
	for name, s := range m.queues {
		out = append(out, Stats{
			Name:           name,
			Active:         s.active,
			MaxConcurrency: s.config.MaxConcurrency,
			RateLimit:      s.config.RateLimit,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
