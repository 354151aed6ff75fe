package api

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// publishEvent triggers every chain subscribed to the named event. A
// failing listener yields 422 with the joined listener errors.
func (a *API) publishEvent(c echo.Context) error {
	var req PublishEventRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if a.bus.Count(req.Name) == 0 {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("no chain listens to %q", req.Name))
	}

	evt, err := a.bus.Publish(c.Request().Context(), req.Name, req.Args...)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error()).SetInternal(err)
	}
	return c.JSON(http.StatusAccepted, PublishEventResponse{
		EventID:   evt.ID,
		Name:      evt.Name,
		Listeners: evt.Listeners,
	})
}
