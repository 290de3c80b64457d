package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/locvowork/public_salaries/internal/domain"
	"github.com/locvowork/public_salaries/internal/service"
)

// EmployeeFinder is the employee read API the handler depends on.
type EmployeeFinder interface {
	FindByID(ctx context.Context, id int64) (*domain.Employee, error)
	FindByName(ctx context.Context, filter domain.EmployeeFilter) ([]domain.Employee, error)
	Search(ctx context.Context, q string, size int) ([]domain.Employee, error)
}

type EmployeeHandler struct {
	svc EmployeeFinder
}

func NewEmployeeHandler(svc EmployeeFinder) *EmployeeHandler {
	return &EmployeeHandler{svc: svc}
}

// GetHandler serves GET /employees/:id. Unknown ids yield an empty 200.
func (h *EmployeeHandler) GetHandler(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return responseError(c, http.StatusBadRequest, "Invalid employee ID", err)
	}

	emp, err := h.svc.FindByID(c.Request().Context(), id)
	if err != nil {
		return responseError(c, http.StatusInternalServerError, "Failed to get employee", err)
	}
	return responseOK(c, emp)
}

// ListHandler serves GET /employees with query-string filters.
func (h *EmployeeHandler) ListHandler(c echo.Context) error {
	var filter domain.EmployeeFilter
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &filter); err != nil {
		return responseError(c, http.StatusBadRequest, "Invalid employee filter", err)
	}
	if err := c.Validate(&filter); err != nil {
		return responseError(c, http.StatusBadRequest, "Invalid employee filter", err)
	}

	employees, err := h.svc.FindByName(c.Request().Context(), filter)
	if err != nil {
		return responseError(c, http.StatusInternalServerError, "Failed to list employees", err)
	}
	return c.JSON(http.StatusOK, employees)
}

// SearchHandler serves GET /employees/search?q=&size=.
func (h *EmployeeHandler) SearchHandler(c echo.Context) error {
	size := 0
	if raw := c.QueryParam("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 || n > 1000 {
			return responseError(c, http.StatusBadRequest, "Invalid search size", err)
		}
		size = n
	}

	employees, err := h.svc.Search(c.Request().Context(), c.QueryParam("q"), size)
	switch {
	case errors.Is(err, service.ErrSearchDisabled):
		return responseError(c, http.StatusServiceUnavailable, "Employee search is not available", err)
	case errors.Is(err, service.ErrEmptyQuery):
		return responseError(c, http.StatusBadRequest, "Query parameter q is required", err)
	case err != nil:
		return responseError(c, http.StatusInternalServerError, "Failed to search employees", err)
	}
	return c.JSON(http.StatusOK, employees)
}
