package bunstore

import (
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/risetechapps/jobchain/dlq"
	"github.com/risetechapps/jobchain/id"
	"github.com/risetechapps/jobchain/task"
)

type taskModel struct {
	bun.BaseModel `bun:"table:jobchain_tasks"`

	ID          string     `bun:"id,pk"`
	Name        string     `bun:"name,notnull"`
	Queue       string     `bun:"queue,notnull,default:'default'"`
	State       string     `bun:"state,notnull,default:'pending'"`
	Priority    int        `bun:"priority,notnull,default:0"`
	MaxRetries  int        `bun:"max_retries,notnull,default:0"`
	RetryCount  int        `bun:"retry_count,notnull,default:0"`
	LastError   string     `bun:"last_error"`
	WorkerID    string     `bun:"worker_id"`
	RunAt       time.Time  `bun:"run_at,notnull,default:current_timestamp"`
	StartedAt   *time.Time `bun:"started_at"`
	CompletedAt *time.Time `bun:"completed_at"`
	HeartbeatAt *time.Time `bun:"heartbeat_at"`
	Timeout     int64      `bun:"timeout,notnull,default:0"`
	CreatedAt   time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt   time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
}

func toTaskModel(t *task.Task) *taskModel {
	return &taskModel{
		ID:          t.ID.String(),
		Name:        t.Name,
		Queue:       t.Queue,
		State:       string(t.State),
		Priority:    t.Priority,
		MaxRetries:  t.MaxRetries,
		RetryCount:  t.RetryCount,
		LastError:   t.LastError,
		WorkerID:    t.WorkerID.String(),
		RunAt:       t.RunAt,
		StartedAt:   t.StartedAt,
		CompletedAt: t.CompletedAt,
		HeartbeatAt: t.HeartbeatAt,
		Timeout:     t.Timeout.Nanoseconds(),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func fromTaskModel(m *taskModel) (*task.Task, error) {
	taskID, err := id.ParseTaskID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("jobchain/bun: parse task id %q: %w", m.ID, err)
	}
	t := &task.Task{
		ID:          taskID,
		Name:        m.Name,
		Queue:       m.Queue,
		State:       task.State(m.State),
		Priority:    m.Priority,
		MaxRetries:  m.MaxRetries,
		RetryCount:  m.RetryCount,
		LastError:   m.LastError,
		RunAt:       m.RunAt,
		StartedAt:   m.StartedAt,
		CompletedAt: m.CompletedAt,
		HeartbeatAt: m.HeartbeatAt,
		Timeout:     time.Duration(m.Timeout),
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	if m.WorkerID != "" {
		if workerID, err := id.ParseWorkerID(m.WorkerID); err == nil {
			t.WorkerID = workerID
		}
	}
	return t, nil
}

func fromTaskModels(models []taskModel) ([]*task.Task, error) {
	tasks := make([]*task.Task, 0, len(models))
	for i := range models {
		t, err := fromTaskModel(&models[i])
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

type dlqModel struct {
	bun.BaseModel `bun:"table:jobchain_dlq"`

	ID         string     `bun:"id,pk"`
	TaskID     string     `bun:"task_id,notnull"`
	Chain      string     `bun:"chain,notnull"`
	FailedJob  string     `bun:"failed_job"`
	Queue      string     `bun:"queue,notnull"`
	Error      string     `bun:"error,notnull"`
	RetryCount int        `bun:"retry_count,notnull,default:0"`
	MaxRetries int        `bun:"max_retries,notnull,default:0"`
	Timeout    int64      `bun:"timeout,notnull,default:0"`
	FailedAt   time.Time  `bun:"failed_at,notnull,default:current_timestamp"`
	ReplayedAt *time.Time `bun:"replayed_at"`
	CreatedAt  time.Time  `bun:"created_at,notnull,default:current_timestamp"`
}

func toDLQModel(e *dlq.Entry) *dlqModel {
	return &dlqModel{
		ID:         e.ID.String(),
		TaskID:     e.TaskID.String(),
		Chain:      e.Chain,
		FailedJob:  e.FailedJob,
		Queue:      e.Queue,
		Error:      e.Error,
		RetryCount: e.RetryCount,
		MaxRetries: e.MaxRetries,
		Timeout:    e.Timeout.Nanoseconds(),
		FailedAt:   e.FailedAt,
		ReplayedAt: e.ReplayedAt,
		CreatedAt:  e.CreatedAt,
	}
}

func fromDLQModel(m *dlqModel) (*dlq.Entry, error) {
	entryID, err := id.ParseDLQID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("jobchain/bun: parse dlq id %q: %w", m.ID, err)
	}
	taskID, err := id.ParseTaskID(m.TaskID)
	if err != nil {
		return nil, fmt.Errorf("jobchain/bun: parse task id %q: %w", m.TaskID, err)
	}
	return &dlq.Entry{
		ID:         entryID,
		TaskID:     taskID,
		Chain:      m.Chain,
		FailedJob:  m.FailedJob,
		Queue:      m.Queue,
		Error:      m.Error,
		RetryCount: m.RetryCount,
		MaxRetries: m.MaxRetries,
		Timeout:    time.Duration(m.Timeout),
		FailedAt:   m.FailedAt,
		ReplayedAt: m.ReplayedAt,
		CreatedAt:  m.CreatedAt,
	}, nil
}
