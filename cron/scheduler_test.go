package cron_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/risetechapps/jobchain"
	"github.com/risetechapps/jobchain/cron"
	"github.com/risetechapps/jobchain/event"
)

// publishSpy records publish calls.
type publishSpy struct {
	mu    sync.Mutex
	calls []publishCall
	err   error
}

type publishCall struct {
	Name string
	Args []any
}

func (p *publishSpy) Publish(_ context.Context, name string, args ...any) (*event.Event, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, publishCall{Name: name, Args: args})
	return &event.Event{Name: name, Args: args}, p.err
}

func (p *publishSpy) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func (p *publishSpy) Calls() []publishCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publishCall(nil), p.calls...)
}

func TestScheduler_RegisterRejectsBadSchedule(t *testing.T) {
	s := cron.NewScheduler(&publishSpy{})
	if _, err := s.Register("bad", "not a schedule", "evt"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestScheduler_RegisterDuplicate(t *testing.T) {
	s := cron.NewScheduler(&publishSpy{})
	if _, err := s.Register("nightly", "@daily", "evt"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	_, err := s.Register("nightly", "@hourly", "evt")
	if !errors.Is(err, jobchain.ErrCronAlreadyExists) {
		t.Fatalf("err = %v, want ErrCronAlreadyExists", err)
	}
}

func TestScheduler_RunDueFiresAndAdvances(t *testing.T) {
	spy := &publishSpy{}
	s := cron.NewScheduler(spy)

	e, err := s.Register("reports", "@every 1m", "reports.generate", "pdf")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if e.NextRunAt == nil {
		t.Fatal("NextRunAt not set")
	}

	// Nothing is due before the first activation.
	if n := s.RunDue(context.Background(), e.NextRunAt.Add(-time.Second)); n != 0 {
		t.Fatalf("fired %d entries before due", n)
	}

	at := e.NextRunAt.Add(time.Millisecond)
	if n := s.RunDue(context.Background(), at); n != 1 {
		t.Fatalf("fired %d entries, want 1", n)
	}

	calls := spy.Calls()
	if len(calls) != 1 || calls[0].Name != "reports.generate" {
		t.Fatalf("calls = %+v", calls)
	}
	if len(calls[0].Args) != 1 || calls[0].Args[0] != "pdf" {
		t.Errorf("args = %v, want [pdf]", calls[0].Args)
	}

	got, err := s.Entry("reports")
	if err != nil {
		t.Fatalf("Entry: %v", err)
	}
	if got.Fired != 1 {
		t.Errorf("Fired = %d, want 1", got.Fired)
	}
	if got.LastRunAt == nil || !got.LastRunAt.Equal(at) {
		t.Errorf("LastRunAt = %v, want %v", got.LastRunAt, at)
	}
	if !got.NextRunAt.After(at) {
		t.Errorf("NextRunAt %v not after %v", got.NextRunAt, at)
	}

	// Same instant again: already advanced.
	if n := s.RunDue(context.Background(), at); n != 0 {
		t.Errorf("fired %d entries twice", n)
	}
}

func TestScheduler_DisableAndEnable(t *testing.T) {
	spy := &publishSpy{}
	s := cron.NewScheduler(spy)
	e, err := s.Register("sync", "@every 1m", "sync.run")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, err := s.Disable("sync"); err != nil {
		t.Fatalf("Disable: %v", err)
	}
	if n := s.RunDue(context.Background(), e.NextRunAt.Add(time.Hour)); n != 0 {
		t.Fatalf("disabled entry fired %d times", n)
	}

	enabled, err := s.Enable("sync")
	if err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if !enabled.Enabled || enabled.NextRunAt == nil {
		t.Fatalf("entry = %+v", enabled)
	}
	if n := s.RunDue(context.Background(), enabled.NextRunAt.Add(time.Millisecond)); n != 1 {
		t.Fatalf("fired %d entries after enable, want 1", n)
	}

	if _, err := s.Disable("missing"); !errors.Is(err, jobchain.ErrCronNotFound) {
		t.Errorf("Disable(missing) = %v, want ErrCronNotFound", err)
	}
}

func TestScheduler_PublishErrorRecorded(t *testing.T) {
	spy := &publishSpy{err: errors.New("listener failed")}
	s := cron.NewScheduler(spy)
	e, err := s.Register("flaky", "@every 1m", "flaky.run")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	s.RunDue(context.Background(), e.NextRunAt.Add(time.Millisecond))

	got, _ := s.Entry("flaky")
	if got.LastError != "listener failed" {
		t.Errorf("LastError = %q", got.LastError)
	}
	if !got.NextRunAt.After(*e.NextRunAt) {
		t.Error("entry did not advance after publish error")
	}
}

func TestScheduler_EntriesSorted(t *testing.T) {
	s := cron.NewScheduler(&publishSpy{})
	for _, name := range []string{"c", "a", "b"} {
		if _, err := s.Register(name, "@hourly", "evt"); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}
	entries := s.Entries()
	if len(entries) != 3 || entries[0].Name != "a" || entries[2].Name != "c" {
		t.Fatalf("entries out of order: %v, %v, %v", entries[0].Name, entries[1].Name, entries[2].Name)
	}
}

func TestScheduler_TickLoopTriggersBus(t *testing.T) {
	bus := event.NewBus()
	fired := make(chan struct{}, 4)
	bus.Subscribe("heartbeat", func(_ context.Context, _ ...any) error {
		select {
		case fired <- struct{}{}:
		default:
		}
		return nil
	})

	s := cron.NewScheduler(bus, cron.WithTickInterval(20*time.Millisecond))
	if _, err := s.Register("heartbeat", "@every 1s", "heartbeat"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for cron to fire")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	// Stop is idempotent.
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}
