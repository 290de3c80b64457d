package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/locvowork/public_salaries/internal/logger"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// responseError logs err against the request and replies {"error": msg}.
func responseError(c echo.Context, status int, msg string, err error) error {
	ctx := c.Request().Context()
	switch {
	case err == nil:
	case status >= http.StatusInternalServerError:
		logger.ErrorLog(ctx, err, "%s %s: %s", c.Request().Method, c.Path(), msg)
	default:
		logger.WarnLog(ctx, "%s %s: %s: %v", c.Request().Method, c.Path(), msg, err)
	}
	return c.JSON(status, ErrorResponse{Error: msg})
}

// responseOK writes v as JSON, or an empty 200 when v is a nil pointer.
func responseOK[T any](c echo.Context, v *T) error {
	if v == nil {
		return c.NoContent(http.StatusOK)
	}
	return c.JSON(http.StatusOK, v)
}

// ErrorHandler renders errors escaping the handlers (unknown routes, panics
// turned into errors by the recover middleware) in the same JSON shape.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	msg := http.StatusText(status)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		msg = fmt.Sprint(he.Message)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = responseError(c, status, msg, err)
	}
	if err != nil {
		logger.ErrorLog(c.Request().Context(), err, "failed to write error response")
	}
}
