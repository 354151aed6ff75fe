package cron

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"

	"github.com/risetechapps/jobchain"
	"github.com/risetechapps/jobchain/event"
)

// Publisher delivers a fired entry's event. *event.Bus satisfies it.
type Publisher interface {
	Publish(ctx context.Context, name string, args ...any) (*event.Event, error)
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithTickInterval sets how often the scheduler checks for due entries.
func WithTickInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.tickInterval = d }
}

// WithLogger sets the scheduler logger.
func WithLogger(l *slog.Logger) SchedulerOption {
	return func(s *Scheduler) { s.logger = l }
}

// cronParser supports standard 5-field cron and descriptors like "@every 30s".
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// ParseSchedule parses a cron expression and returns the schedule.
func ParseSchedule(expr string) (cronlib.Schedule, error) {
	return cronParser.Parse(expr)
}

// Scheduler publishes events for cron entries on a tick loop.
type Scheduler struct {
	pub    Publisher
	logger *slog.Logger

	tickInterval time.Duration

	mu      sync.Mutex
	entries map[string]*Entry
	parsed  map[string]cronlib.Schedule

	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
}

// NewScheduler creates a Scheduler that fires into pub.
func NewScheduler(pub Publisher, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		pub:          pub,
		logger:       slog.Default(),
		tickInterval: time.Second,
		entries:      make(map[string]*Entry),
		parsed:       make(map[string]cronlib.Schedule),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds an enabled entry that publishes evt with args on schedule.
// The first run is the next activation after now.
func (s *Scheduler) Register(name, schedule, evt string, args ...any) (*Entry, error) {
	sched, err := ParseSchedule(schedule)
	if err != nil {
		return nil, fmt.Errorf("cron %q: parse schedule %q: %w", name, schedule, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[name]; ok {
		return nil, fmt.Errorf("cron %q: %w", name, jobchain.ErrCronAlreadyExists)
	}
	next := sched.Next(time.Now().UTC())
	e := &Entry{
		Name:      name,
		Schedule:  schedule,
		Event:     evt,
		Args:      args,
		Enabled:   true,
		NextRunAt: &next,
	}
	s.entries[name] = e
	s.parsed[name] = sched
	return e.clone(), nil
}

// Entry returns a copy of the named entry.
func (s *Scheduler) Entry(name string) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[name]
	if !ok {
		return nil, fmt.Errorf("cron %q: %w", name, jobchain.ErrCronNotFound)
	}
	return e.clone(), nil
}

// Entries returns copies of all entries sorted by name.
func (s *Scheduler) Entries() []*Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Enable resumes firing the named entry from the next activation after now.
func (s *Scheduler) Enable(name string) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[name]
	if !ok {
		return nil, fmt.Errorf("cron %q: %w", name, jobchain.ErrCronNotFound)
	}
	if !e.Enabled {
		next := s.parsed[name].Next(time.Now().UTC())
		e.NextRunAt = &next
		e.Enabled = true
	}
	return e.clone(), nil
}

// Disable stops the named entry from firing.
func (s *Scheduler) Disable(name string) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[name]
	if !ok {
		return nil, fmt.Errorf("cron %q: %w", name, jobchain.ErrCronNotFound)
	}
	e.Enabled = false
	return e.clone(), nil
}

// Start launches the tick loop.
func (s *Scheduler) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.wg.Add(1)
	go s.tickLoop(s.stopCh)
	s.logger.Info("cron scheduler started",
		slog.Int("entries", len(s.entries)),
		slog.Duration("tick_interval", s.tickInterval),
	)
	return nil
}

// Stop signals the tick loop to exit and waits for it, or for ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Info("cron scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) tickLoop(stop <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.RunDue(context.Background(), time.Now().UTC())
		}
	}
}

// RunDue fires every enabled entry whose NextRunAt is at or before now
// and returns how many fired. A publish error is logged and recorded on
// the entry; the entry still advances to its next activation.
func (s *Scheduler) RunDue(ctx context.Context, now time.Time) int {
	s.mu.Lock()
	var due []*Entry
	for _, e := range s.entries {
		if !e.Enabled || e.NextRunAt == nil || e.NextRunAt.After(now) {
			continue
		}
		ran := now
		next := s.parsed[e.Name].Next(now)
		e.LastRunAt = &ran
		e.NextRunAt = &next
		e.Fired++
		due = append(due, e.clone())
	}
	s.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].Name < due[j].Name })
	for _, e := range due {
		s.fire(ctx, e)
	}
	return len(due)
}

func (s *Scheduler) fire(ctx context.Context, e *Entry) {
	evt, err := s.pub.Publish(ctx, e.Event, e.Args...)

	s.mu.Lock()
	if cur, ok := s.entries[e.Name]; ok {
		cur.LastError = ""
		if err != nil {
			cur.LastError = err.Error()
		}
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("cron publish error",
			slog.String("cron_name", e.Name),
			slog.String("event", e.Event),
			slog.String("error", err.Error()),
		)
		return
	}
	s.logger.Info("cron fired",
		slog.String("cron_name", e.Name),
		slog.String("event", e.Event),
		slog.String("event_id", evt.ID.String()),
		slog.Int("listeners", evt.Listeners),
	)
}
