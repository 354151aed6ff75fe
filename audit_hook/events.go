package audithook

// Audit actions. Task actions map one-to-one to ext lifecycle hooks; the
// chain actions come from the chain's error reporter.
const (
	ActionTaskEnqueued  = "task.enqueued"
	ActionTaskStarted   = "task.started"
	ActionTaskCompleted = "task.completed"
	ActionTaskFailed    = "task.failed"
	ActionTaskRetrying  = "task.retrying"
	ActionTaskDLQ       = "task.dlq"

	ActionJobFailed       = "chain.job_failed"
	ActionFailureHookFail = "chain.failure_hook_failed"
	ActionChainError      = "chain.error"
)

// Audit event categories group related actions.
const (
	CategoryTask  = "jobchain.task"
	CategoryChain = "jobchain.chain"
)

// Resource types used as the Resource field in audit events.
const (
	ResourceTask = "task"
	ResourceJob  = "job"
)

// AllActions returns every action this extension can emit.
func AllActions() []string {
	return []string{
		ActionTaskEnqueued,
		ActionTaskStarted,
		ActionTaskCompleted,
		ActionTaskFailed,
		ActionTaskRetrying,
		ActionTaskDLQ,
		ActionJobFailed,
		ActionFailureHookFail,
		ActionChainError,
	}
}
