package stream

import (
	"sync/atomic"
)

// Subscriber receives events on a buffered channel. A slow subscriber
// loses events rather than blocking the engine: when its buffer is full
// or its credits are spent the event is dropped and counted.
type Subscriber struct {
	id      string
	ch      chan *Event
	credits atomic.Int64
	dropped atomic.Int64
	closed  atomic.Bool
}

// NewSubscriber creates a subscriber with the given buffer size and
// initial credits. Credits below zero mean unlimited.
func NewSubscriber(id string, bufferSize int, credits int64) *Subscriber {
	s := &Subscriber{id: id, ch: make(chan *Event, bufferSize)}
	s.credits.Store(credits)
	return s
}

// ID returns the subscriber identifier.
func (s *Subscriber) ID() string { return s.id }

// C returns the event channel. It is closed when the subscriber is.
func (s *Subscriber) C() <-chan *Event { return s.ch }

// AddCredits grants n more deliveries.
func (s *Subscriber) AddCredits(n int64) { s.credits.Add(n) }

// Credits returns the remaining credits.
func (s *Subscriber) Credits() int64 { return s.credits.Load() }

// Dropped returns how many events this subscriber missed.
func (s *Subscriber) Dropped() int64 { return s.dropped.Load() }

func (s *Subscriber) take() bool {
	for {
		cur := s.credits.Load()
		if cur < 0 {
			return true
		}
		if cur == 0 {
			return false
		}
		if s.credits.CompareAndSwap(cur, cur-1) {
			return true
		}
	}
}

func (s *Subscriber) refund() {
	if s.credits.Load() >= 0 {
		s.credits.Add(1)
	}
}

// send delivers evt without blocking and reports whether it was accepted.
func (s *Subscriber) send(evt *Event) (ok bool) {
	if s.closed.Load() {
		return false
	}
	if !s.take() {
		s.dropped.Add(1)
		return false
	}
	// Close may race with a send in flight.
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	select {
	case s.ch <- evt:
		return true
	default:
		s.refund()
		s.dropped.Add(1)
		return false
	}
}

// Close closes the channel. Safe to call more than once.
func (s *Subscriber) Close() {
	if s.closed.CompareAndSwap(false, true) {
		close(s.ch)
	}
}
