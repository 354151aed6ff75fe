package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/risetechapps/jobchain/dlq"
	"github.com/risetechapps/jobchain/id"
)

func (a *API) listDLQ(c echo.Context) error {
	var req ListDLQRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	entries, err := a.eng.DLQService().DLQStore().ListDLQ(c.Request().Context(), dlq.ListOpts{
		Limit:  pageSize(req.Limit),
		Offset: req.Offset,
		Queue:  req.Queue,
	})
	if err != nil {
		return fmt.Errorf("list dlq: %w", err)
	}
	if entries == nil {
		entries = []*dlq.Entry{}
	}
	return c.JSON(http.StatusOK, entries)
}

func (a *API) getDLQ(c echo.Context) error {
	entryID, err := id.ParseDLQID(c.Param("entryId"))
	if err != nil {
		return badRequest(fmt.Sprintf("invalid DLQ entry ID: %v", err))
	}

	entry, err := a.eng.DLQService().DLQStore().GetDLQ(c.Request().Context(), entryID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, entry)
}

// replayDLQ runs the dead chain again as a new task. Only entries whose
// runnable is still held by this process can be replayed.
func (a *API) replayDLQ(c echo.Context) error {
	entryID, err := id.ParseDLQID(c.Param("entryId"))
	if err != nil {
		return badRequest(fmt.Sprintf("invalid DLQ entry ID: %v", err))
	}

	t, err := a.eng.DLQService().Replay(c.Request().Context(), entryID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, t)
}

func (a *API) purgeDLQ(c echo.Context) error {
	var req PurgeDLQRequest
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &req); err != nil {
		return err
	}
	age := defaultPurgeAge
	if req.OlderThan != "" {
		d, err := time.ParseDuration(req.OlderThan)
		if err != nil || d < 0 {
			return badRequest(fmt.Sprintf("invalid older_than %q", req.OlderThan))
		}
		age = d
	}

	n, err := a.eng.DLQService().Purge(c.Request().Context(), time.Now().UTC().Add(-age))
	if err != nil {
		return fmt.Errorf("purge dlq: %w", err)
	}
	return c.JSON(http.StatusOK, PurgeDLQResponse{Purged: n})
}

func (a *API) dlqCount(c echo.Context) error {
	n, err := a.eng.DLQService().DLQStore().CountDLQ(c.Request().Context())
	if err != nil {
		return fmt.Errorf("count dlq: %w", err)
	}
	return c.JSON(http.StatusOK, DLQCountResponse{Count: n})
}
