package api

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

func (a *API) stats(c echo.Context) error {
	counts, err := a.counts(c)
	if err != nil {
		return err
	}

	dlqCount, err := a.eng.DLQService().DLQStore().CountDLQ(c.Request().Context())
	if err != nil {
		return fmt.Errorf("count dlq: %w", err)
	}

	qs := a.eng.QueueManager().Stats()
	queues := make([]QueueStats, len(qs))
	for i, q := range qs {
		queues[i] = QueueStats{
			Name:           q.Name,
			Active:         q.Active,
			MaxConcurrency: q.MaxConcurrency,
			RateLimit:      q.RateLimit,
		}
	}

	crons := 0
	if a.sched != nil {
		crons = len(a.sched.Entries())
	}

	return c.JSON(http.StatusOK, StatsResponse{
		Tasks:    counts,
		DLQCount: dlqCount,
		Queues:   queues,
		Crons:    crons,
		Running:  a.eng.Running(),
	})
}
