package jobchain

import "errors"

var (
	// Store errors.
	ErrNoStore     = errors.New("jobchain: no store configured")
	ErrStoreClosed = errors.New("jobchain: store closed")

	// Not found errors.
	ErrTaskNotFound     = errors.New("jobchain: task not found")
	ErrDLQNotFound      = errors.New("jobchain: dlq entry not found")
	ErrUnitNotFound     = errors.New("jobchain: unit not registered")
	ErrRunnableNotFound = errors.New("jobchain: runnable not available in this process")
	ErrCronNotFound     = errors.New("jobchain: cron entry not found")

	// Conflict errors.
	ErrTaskAlreadyExists = errors.New("jobchain: task already exists")
	ErrCronAlreadyExists = errors.New("jobchain: cron entry already exists")

	// State errors.
	ErrInvalidState       = errors.New("jobchain: invalid state transition")
	ErrMaxRetriesExceeded = errors.New("jobchain: max retries exceeded")
	ErrNoDispatcher       = errors.New("jobchain: chain has no dispatcher")
	ErrNotRunning         = errors.New("jobchain: engine not running")

	// Transaction errors.
	ErrTxDone = errors.New("jobchain: transaction already finished")
)
