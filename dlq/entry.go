package dlq

import (
	"time"

	"github.com/risetechapps/jobchain/id"
)

// Entry is a chain run that exhausted its retry budget.
type Entry struct {
	ID         id.DLQID      `json:"id"`
	TaskID     id.TaskID     `json:"task_id"`
	Chain      string        `json:"chain"`
	FailedJob  string        `json:"failed_job,omitempty"`
	Queue      string        `json:"queue"`
	Error      string        `json:"error"`
	RetryCount int           `json:"retry_count"`
	MaxRetries int           `json:"max_retries"`
	Timeout    time.Duration `json:"timeout,omitempty"`
	FailedAt   time.Time     `json:"failed_at"`
	ReplayedAt *time.Time    `json:"replayed_at,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}
