package chain

import "fmt"

// JobFailure is returned when a job in the chain fails. It carries the
// failing job's identifier and the original cause.
type JobFailure struct {
	Job   string
	Index int
	Err   error
}

func (e *JobFailure) Error() string {
	return fmt.Sprintf("job [%s] failed: %v", e.Job, e.Err)
}

func (e *JobFailure) Unwrap() error { return e.Err }

// JobName returns the identifier of the failing job.
func (e *JobFailure) JobName() string { return e.Job }

// SecondaryFailure is reported when a unit's Failed hook returns an error
// or panics while handling a JobFailure. It is never returned to the
// caller; the original JobFailure is.
type SecondaryFailure struct {
	Job   string
	Err   error
	Cause error
}

func (e *SecondaryFailure) Error() string {
	return fmt.Sprintf("job [%s] failure hook: %v (handling: %v)", e.Job, e.Err, e.Cause)
}

func (e *SecondaryFailure) Unwrap() error { return e.Err }

// JobName returns the identifier of the job whose hook failed.
func (e *SecondaryFailure) JobName() string { return e.Job }
