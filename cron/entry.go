package cron

import (
	"time"
)

// Entry is a recurring trigger that publishes Event with Args each time
// Schedule comes due.
type Entry struct {
	Name      string     `json:"name"`
	Schedule  string     `json:"schedule"`
	Event     string     `json:"event"`
	Args      []any      `json:"args,omitempty"`
	Enabled   bool       `json:"enabled"`
	Fired     int64      `json:"fired"`
	LastError string     `json:"last_error,omitempty"`
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
	NextRunAt *time.Time `json:"next_run_at,omitempty"`
}

func (e *Entry) clone() *Entry {
	c := *e
	c.Args = append([]any(nil), e.Args...)
	if e.LastRunAt != nil {
		t := *e.LastRunAt
		c.LastRunAt = &t
	}
	if e.NextRunAt != nil {
		t := *e.NextRunAt
		c.NextRunAt = &t
	}
	return &c
}
