// Package stream fans task lifecycle and chain failure events out to live
// subscribers over topic-based pub/sub. The admin API serves it as
// server-sent events.
package stream

import (
	"encoding/json"
	"time"
)

// EventType identifies the kind of lifecycle event.
type EventType string

const (
	// Task events.
	EventTaskEnqueued  EventType = "task.enqueued"
	EventTaskStarted   EventType = "task.started"
	EventTaskCompleted EventType = "task.completed"
	EventTaskFailed    EventType = "task.failed"
	EventTaskRetrying  EventType = "task.retrying"
	EventTaskDLQ       EventType = "task.dlq"

	// Chain events, fed by the broker's reporter.
	EventJobFailed         EventType = "chain.job_failed"
	EventFailureHookFailed EventType = "chain.failure_hook_failed"
	EventChainError        EventType = "chain.error"
)

// Event is the envelope sent to subscribers.
type Event struct {
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"ts"`
	Topic     string          `json:"topic,omitempty"`
	Queue     string          `json:"-"`
	Data      json.RawMessage `json:"data"`
}

// TaskEventData is the payload of task events.
type TaskEventData struct {
	TaskID    string `json:"task_id"`
	Chain     string `json:"chain"`
	Queue     string `json:"queue"`
	Attempt   int    `json:"attempt,omitempty"`
	ElapsedMs int64  `json:"elapsed_ms,omitempty"`
	NextRunAt string `json:"next_run_at,omitempty"`
	Error     string `json:"error,omitempty"`
}

// ChainEventData is the payload of chain events.
type ChainEventData struct {
	Job   string `json:"job,omitempty"`
	Index int    `json:"index,omitempty"`
	Error string `json:"error"`
	Cause string `json:"cause,omitempty"`
}
