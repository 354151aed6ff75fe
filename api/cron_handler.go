package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func (a *API) listCrons(c echo.Context) error {
	return c.JSON(http.StatusOK, a.sched.Entries())
}

func (a *API) getCron(c echo.Context) error {
	e, err := a.sched.Entry(c.Param("name"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, e)
}

func (a *API) enableCron(c echo.Context) error {
	e, err := a.sched.Enable(c.Param("name"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, e)
}

func (a *API) disableCron(c echo.Context) error {
	e, err := a.sched.Disable(c.Param("name"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, e)
}
