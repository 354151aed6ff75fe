package chain

// Status is the terminal state of one chain run.
type Status int

const (
	// Succeeded means every job ran without error.
	Succeeded Status = iota
	// Stopped means a job returned false and the rest were skipped.
	Stopped
	// Failed means a job failed and the rest were skipped.
	Failed
)

func (s Status) String() string {
	switch s {
	case Succeeded:
		return "succeeded"
	case Stopped:
		return "stopped"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome describes a finished run.
type Outcome struct {
	Status Status
	// Executed counts the jobs that were started, including a failing one.
	Executed int
	// Err is the JobFailure of a failed run.
	Err error
}
