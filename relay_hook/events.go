package relayhook

// Lifecycle event names. Each maps to one ext task hook and is the name
// published on the event bus.
const (
	EventTaskEnqueued  = "jobchain.task.enqueued"
	EventTaskStarted   = "jobchain.task.started"
	EventTaskCompleted = "jobchain.task.completed"
	EventTaskRetrying  = "jobchain.task.retrying"
	EventTaskFailed    = "jobchain.task.failed"
	EventTaskDLQ       = "jobchain.task.dlq"
)

// AllEvents returns every event name the extension can publish.
func AllEvents() []string {
	return []string{
		EventTaskEnqueued,
		EventTaskStarted,
		EventTaskCompleted,
		EventTaskRetrying,
		EventTaskFailed,
		EventTaskDLQ,
	}
}

// TaskPayload is the single argument of every lifecycle event. Fields that
// do not apply to an event are zero.
type TaskPayload struct {
	TaskID    string `json:"task_id"`
	Chain     string `json:"chain"`
	Queue     string `json:"queue"`
	Attempt   int    `json:"attempt,omitempty"`
	ElapsedMs int64  `json:"elapsed_ms,omitempty"`
	NextRunAt string `json:"next_run_at,omitempty"`
	Error     string `json:"error,omitempty"`
}
