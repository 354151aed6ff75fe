package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/risetechapps/jobchain"
	"github.com/risetechapps/jobchain/id"
	"github.com/risetechapps/jobchain/task"
)

var taskStates = []task.State{
	task.StatePending,
	task.StateRunning,
	task.StateCompleted,
	task.StateFailed,
	task.StateRetrying,
	task.StateCancelled,
}

func parseState(s string) (task.State, error) {
	if s == "" {
		return task.StatePending, nil
	}
	for _, st := range taskStates {
		if string(st) == s {
			return st, nil
		}
	}
	return "", badRequest(fmt.Sprintf("unknown task state %q", s))
}

func (a *API) listTasks(c echo.Context) error {
	var req ListTasksRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	state, err := parseState(req.State)
	if err != nil {
		return err
	}

	tasks, err := a.eng.Store().ListTasksByState(c.Request().Context(), state, task.ListOpts{
		Limit:  pageSize(req.Limit),
		Offset: req.Offset,
		Queue:  req.Queue,
	})
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}
	if tasks == nil {
		tasks = []*task.Task{}
	}
	return c.JSON(http.StatusOK, tasks)
}

func (a *API) getTask(c echo.Context) error {
	taskID, err := id.ParseTaskID(c.Param("taskId"))
	if err != nil {
		return badRequest(fmt.Sprintf("invalid task ID: %v", err))
	}

	t, err := a.eng.Task(c.Request().Context(), taskID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}

// cancelTask cancels a task that no worker has claimed yet and drops its
// runnable.
func (a *API) cancelTask(c echo.Context) error {
	taskID, err := id.ParseTaskID(c.Param("taskId"))
	if err != nil {
		return badRequest(fmt.Sprintf("invalid task ID: %v", err))
	}

	ctx := c.Request().Context()
	t, err := a.eng.Task(ctx, taskID)
	if err != nil {
		return err
	}
	if t.State != task.StatePending && t.State != task.StateRetrying {
		return fmt.Errorf("cancel task in state %s: %w", t.State, jobchain.ErrInvalidState)
	}

	now := time.Now().UTC()
	t.State = task.StateCancelled
	t.CompletedAt = &now
	t.UpdatedAt = now
	if err := a.eng.Store().UpdateTask(ctx, t); err != nil {
		return fmt.Errorf("cancel task: %w", err)
	}
	a.eng.Runnables().Delete(t.ID)
	return c.JSON(http.StatusOK, t)
}

func (a *API) counts(c echo.Context) (TaskCountsResponse, error) {
	out := make(TaskCountsResponse, len(taskStates))
	for _, st := range taskStates {
		n, err := a.eng.Store().CountTasks(c.Request().Context(), task.CountOpts{State: st})
		if err != nil {
			return nil, fmt.Errorf("count tasks (%s): %w", st, err)
		}
		out[string(st)] = n
	}
	return out, nil
}

func (a *API) taskCounts(c echo.Context) error {
	counts, err := a.counts(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, counts)
}
