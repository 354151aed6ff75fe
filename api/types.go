package api

import (
	"time"

	"github.com/risetechapps/jobchain/id"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
	defaultPurgeAge = 30 * 24 * time.Hour
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody carries a machine code and a human message.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HealthResponse is returned by GET /healthz.
type HealthResponse struct {
	Status  string `json:"status"`
	Running bool   `json:"running"`
}

// PublishEventRequest is the body of POST /v1/events/:name.
type PublishEventRequest struct {
	Name string `param:"name"`
	Args []any  `json:"args"`
}

// PublishEventResponse reports a published trigger.
type PublishEventResponse struct {
	EventID   id.EventID `json:"event_id"`
	Name      string     `json:"name"`
	Listeners int        `json:"listeners"`
}

// ListTasksRequest filters GET /v1/tasks.
type ListTasksRequest struct {
	State  string `query:"state"`
	Queue  string `query:"queue"`
	Limit  int    `query:"limit"`
	Offset int    `query:"offset"`
}

// ListDLQRequest filters GET /v1/dlq.
type ListDLQRequest struct {
	Queue  string `query:"queue"`
	Limit  int    `query:"limit"`
	Offset int    `query:"offset"`
}

// PurgeDLQRequest selects entries for POST /v1/dlq/purge.
type PurgeDLQRequest struct {
	// OlderThan is a duration such as "720h". Empty means 30 days.
	OlderThan string `query:"older_than"`
}

// PurgeDLQResponse reports how many entries were removed.
type PurgeDLQResponse struct {
	Purged int64 `json:"purged"`
}

// DLQCountResponse is returned by GET /v1/dlq/count.
type DLQCountResponse struct {
	Count int64 `json:"count"`
}

// TaskCountsResponse holds task counts keyed by state.
type TaskCountsResponse map[string]int64

// QueueStats is a point-in-time view of one queue.
type QueueStats struct {
	Name           string  `json:"name"`
	Active         int     `json:"active"`
	MaxConcurrency int     `json:"max_concurrency,omitempty"`
	RateLimit      float64 `json:"rate_limit,omitempty"`
}

// StatsResponse aggregates task, dead letter, queue and cron state.
type StatsResponse struct {
	Tasks    TaskCountsResponse `json:"tasks"`
	DLQCount int64              `json:"dlq_count"`
	Queues   []QueueStats       `json:"queues"`
	Crons    int                `json:"crons"`
	Running  bool               `json:"running"`
}

func pageSize(limit int) int {
	switch {
	case limit <= 0:
		return defaultPageSize
	case limit > maxPageSize:
		return maxPageSize
	}
	return limit
}
