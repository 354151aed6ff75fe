package task

import (
	"context"
	"time"

	"github.com/risetechapps/jobchain/id"
)

// State represents the lifecycle state of a task.
type State string

const (
	// StatePending means the task is waiting to be picked up by a worker.
	StatePending State = "pending"
	// StateRunning means a worker is currently executing the task.
	StateRunning State = "running"
	// StateCompleted means the task finished successfully.
	StateCompleted State = "completed"
	// StateFailed means the task failed and will not be retried.
	StateFailed State = "failed"
	// StateRetrying means the task failed but is scheduled for retry.
	StateRetrying State = "retrying"
	// StateCancelled means the task was explicitly cancelled.
	StateCancelled State = "cancelled"
)

// Terminal reports whether no further transition is expected from s.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Task is the persisted record of one submitted runnable.
type Task struct {
	ID          id.TaskID     `json:"id"`
	Name        string        `json:"name"`
	Queue       string        `json:"queue"`
	State       State         `json:"state"`
	Priority    int           `json:"priority"`
	MaxRetries  int           `json:"max_retries"`
	RetryCount  int           `json:"retry_count"`
	LastError   string        `json:"last_error,omitempty"`
	WorkerID    id.WorkerID   `json:"worker_id,omitempty"`
	RunAt       time.Time     `json:"run_at"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	HeartbeatAt *time.Time    `json:"heartbeat_at,omitempty"`
	Timeout     time.Duration `json:"timeout,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Runnable is the opaque unit the host queue executes.
type Runnable interface {
	// Run executes the unit once. A non-nil error marks the attempt failed.
	Run(ctx context.Context) error

	// DisplayName is shown in logs, traces and dashboards.
	DisplayName() string

	// Timeout is the advisory execution budget. Zero means unlimited.
	Timeout() time.Duration
}

// Configurer is implemented by runnables that carry their own submission
// options. They are applied after the engine defaults and before any
// options passed to Submit.
type Configurer interface {
	TaskOptions() []Option
}

// RunnableFunc adapts a function to Runnable with a fixed name and no
// timeout.
type RunnableFunc struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Run implements Runnable.
func (r RunnableFunc) Run(ctx context.Context) error { return r.Fn(ctx) }

// DisplayName implements Runnable.
func (r RunnableFunc) DisplayName() string { return r.Name }

// Timeout implements Runnable.
func (r RunnableFunc) Timeout() time.Duration { return 0 }
