package stream

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/risetechapps/jobchain/chain"
	"github.com/risetechapps/jobchain/ext"
	"github.com/risetechapps/jobchain/report"
	"github.com/risetechapps/jobchain/task"
)

var (
	_ ext.Extension     = (*Broker)(nil)
	_ ext.TaskEnqueued  = (*Broker)(nil)
	_ ext.TaskStarted   = (*Broker)(nil)
	_ ext.TaskCompleted = (*Broker)(nil)
	_ ext.TaskFailed    = (*Broker)(nil)
	_ ext.TaskRetrying  = (*Broker)(nil)
	_ ext.TaskDLQ       = (*Broker)(nil)
	_ ext.Shutdown      = (*Broker)(nil)
)

// DefaultBufferSize is the default per-subscriber event buffer.
const DefaultBufferSize = 256

// Broker receives lifecycle hooks as an engine extension and chain
// failures through Reporter, and fans both out to subscribers.
type Broker struct {
	topics *TopicRegistry
	logger *slog.Logger

	mu          sync.Mutex
	subscribers map[string]*Subscriber

	published atomic.Int64

	bufferSize int
	credits    int64
}

// BrokerOption configures a Broker.
type BrokerOption func(*Broker)

// WithBufferSize sets the per-subscriber event buffer size.
func WithBufferSize(size int) BrokerOption {
	return func(b *Broker) { b.bufferSize = size }
}

// WithCredits sets the initial credits of new subscribers. Negative
// credits mean unlimited, which is the default.
func WithCredits(credits int64) BrokerOption {
	return func(b *Broker) { b.credits = credits }
}

// WithLogger sets the broker logger.
func WithLogger(l *slog.Logger) BrokerOption {
	return func(b *Broker) { b.logger = l }
}

// NewBroker creates a broker with no subscribers.
func NewBroker(opts ...BrokerOption) *Broker {
	b := &Broker{
		topics:      NewTopicRegistry(),
		logger:      slog.Default(),
		subscribers: make(map[string]*Subscriber),
		bufferSize:  DefaultBufferSize,
		credits:     -1,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name implements ext.Extension.
func (b *Broker) Name() string { return "stream-broker" }

// Subscribe registers a subscriber on topics. Topics are validated first.
func (b *Broker) Subscribe(subscriberID string, topics ...string) (*Subscriber, error) {
	for _, topic := range topics {
		if err := ValidateTopic(topic); err != nil {
			return nil, err
		}
	}
	sub := NewSubscriber(subscriberID, b.bufferSize, b.credits)

	b.mu.Lock()
	if old, ok := b.subscribers[subscriberID]; ok {
		b.topics.UnsubscribeAll(subscriberID)
		old.Close()
	}
	b.subscribers[subscriberID] = sub
	b.mu.Unlock()

	for _, topic := range topics {
		b.topics.Subscribe(topic, sub)
	}
	return sub, nil
}

// Remove unsubscribes and closes a subscriber.
func (b *Broker) Remove(subscriberID string) {
	b.topics.UnsubscribeAll(subscriberID)
	b.mu.Lock()
	sub, ok := b.subscribers[subscriberID]
	delete(b.subscribers, subscriberID)
	b.mu.Unlock()
	if ok {
		sub.Close()
	}
}

// Stats is a point-in-time view of the broker.
type Stats struct {
	Topics      int   `json:"topics"`
	Subscribers int   `json:"subscribers"`
	Published   int64 `json:"published"`
}

// Stats returns broker statistics.
func (b *Broker) Stats() Stats {
	b.mu.Lock()
	n := len(b.subscribers)
	b.mu.Unlock()
	return Stats{
		Topics:      b.topics.TopicCount(),
		Subscribers: n,
		Published:   b.published.Load(),
	}
}

func (b *Broker) publish(evt *Event) {
	delivered := b.topics.Broadcast(resolveTopics(evt), evt)
	b.published.Add(int64(delivered))
}

func (b *Broker) task(typ EventType, t *task.Task, data TaskEventData) {
	data.TaskID = t.ID.String()
	data.Chain = t.Name
	data.Queue = t.Queue
	raw, err := json.Marshal(data)
	if err != nil {
		b.logger.Error("stream: marshal task event", slog.String("error", err.Error()))
		return
	}
	b.publish(&Event{
		Type:      typ,
		Timestamp: time.Now().UTC(),
		Topic:     TaskTopic(data.TaskID),
		Queue:     t.Queue,
		Data:      raw,
	})
}

// OnTaskEnqueued implements ext.TaskEnqueued.
func (b *Broker) OnTaskEnqueued(_ context.Context, t *task.Task) error {
	b.task(EventTaskEnqueued, t, TaskEventData{})
	return nil
}

// OnTaskStarted implements ext.TaskStarted.
func (b *Broker) OnTaskStarted(_ context.Context, t *task.Task) error {
	b.task(EventTaskStarted, t, TaskEventData{Attempt: t.RetryCount + 1})
	return nil
}

// OnTaskCompleted implements ext.TaskCompleted.
func (b *Broker) OnTaskCompleted(_ context.Context, t *task.Task, elapsed time.Duration) error {
	b.task(EventTaskCompleted, t, TaskEventData{ElapsedMs: elapsed.Milliseconds()})
	return nil
}

// OnTaskFailed implements ext.TaskFailed.
func (b *Broker) OnTaskFailed(_ context.Context, t *task.Task, err error) error {
	b.task(EventTaskFailed, t, TaskEventData{Error: err.Error()})
	return nil
}

// OnTaskRetrying implements ext.TaskRetrying.
func (b *Broker) OnTaskRetrying(_ context.Context, t *task.Task, attempt int, nextRunAt time.Time) error {
	b.task(EventTaskRetrying, t, TaskEventData{Attempt: attempt, NextRunAt: nextRunAt.Format(time.RFC3339)})
	return nil
}

// OnTaskDLQ implements ext.TaskDLQ.
func (b *Broker) OnTaskDLQ(_ context.Context, t *task.Task, err error) error {
	b.task(EventTaskDLQ, t, TaskEventData{Error: err.Error()})
	return nil
}

// OnShutdown closes every subscriber.
func (b *Broker) OnShutdown(_ context.Context) error {
	b.mu.Lock()
	subs := b.subscribers
	b.subscribers = make(map[string]*Subscriber)
	b.mu.Unlock()

	for subID, sub := range subs {
		b.topics.UnsubscribeAll(subID)
		sub.Close()
	}
	b.logger.Info("stream broker shut down", slog.Int("subscribers", len(subs)))
	return nil
}

// Reporter returns a chain reporter that streams job failures and
// failure hook errors on the chains topic.
func (b *Broker) Reporter() report.Reporter {
	return report.Func(func(_ context.Context, err error) {
		data := ChainEventData{Error: err.Error()}
		typ := EventChainError

		var secondary *chain.SecondaryFailure
		var failure *chain.JobFailure
		switch {
		case errors.As(err, &secondary):
			typ = EventFailureHookFailed
			data.Job = secondary.Job
			if secondary.Cause != nil {
				data.Cause = secondary.Cause.Error()
			}
		case errors.As(err, &failure):
			typ = EventJobFailed
			data.Job = failure.Job
			data.Index = failure.Index
		}

		raw, mErr := json.Marshal(data)
		if mErr != nil {
			return
		}
		b.publish(&Event{Type: typ, Timestamp: time.Now().UTC(), Data: raw})
	})
}
