package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/risetechapps/jobchain"
)

// errorHandler renders every error as {"error": {"code", "message"}}.
func errorHandler(log *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		body := ErrorBody{Code: "internal_error", Message: "an internal error occurred"}

		var he *echo.HTTPError
		switch {
		case errors.As(err, &he):
			code = he.Code
			body.Code = codeFor(code)
			if msg, ok := he.Message.(string); ok {
				body.Message = msg
			} else {
				body.Message = http.StatusText(code)
			}
		case isNotFound(err):
			code = http.StatusNotFound
			body = ErrorBody{Code: "not_found", Message: err.Error()}
		case isConflict(err):
			code = http.StatusConflict
			body = ErrorBody{Code: "conflict", Message: err.Error()}
		}

		if code >= http.StatusInternalServerError {
			log.Error("request error",
				slog.String("method", c.Request().Method),
				slog.String("path", c.Path()),
				slog.Int("status", code),
				slog.String("error", err.Error()),
			)
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, ErrorResponse{Error: body})
	}
}

func codeFor(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusServiceUnavailable:
		return "unavailable"
	case http.StatusUnprocessableEntity:
		return "listener_failed"
	}
	if status >= http.StatusInternalServerError {
		return "internal_error"
	}
	return "error"
}

func isNotFound(err error) bool {
	return errors.Is(err, jobchain.ErrTaskNotFound) ||
		errors.Is(err, jobchain.ErrDLQNotFound) ||
		errors.Is(err, jobchain.ErrCronNotFound)
}

func isConflict(err error) bool {
	return errors.Is(err, jobchain.ErrRunnableNotFound) ||
		errors.Is(err, jobchain.ErrInvalidState)
}

func badRequest(msg string) error {
	return echo.NewHTTPError(http.StatusBadRequest, msg)
}
