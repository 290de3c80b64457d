package handler

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/locvowork/public_salaries/internal/domain"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// AgencyFinder is the agency read API the handler depends on.
type AgencyFinder interface {
	FindByID(ctx context.Context, id int64) (*domain.Agency, error)
	FindByName(ctx context.Context, filter domain.AgencyFilter) ([]domain.Agency, error)
	FindStats(ctx context.Context) ([]float64, error)
	ExportReport(ctx context.Context, w io.Writer) error
}

type AgencyHandler struct {
	svc AgencyFinder
}

func NewAgencyHandler(svc AgencyFinder) *AgencyHandler {
	return &AgencyHandler{svc: svc}
}

// GetHandler serves GET /agencies/:id. Unknown ids yield an empty 200.
func (h *AgencyHandler) GetHandler(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return responseError(c, http.StatusBadRequest, "Invalid agency ID", err)
	}

	agency, err := h.svc.FindByID(c.Request().Context(), id)
	if err != nil {
		return responseError(c, http.StatusInternalServerError, "Failed to get agency", err)
	}
	return responseOK(c, agency)
}

// ListHandler serves GET /agencies?name=&year=.
func (h *AgencyHandler) ListHandler(c echo.Context) error {
	var filter domain.AgencyFilter
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &filter); err != nil {
		return responseError(c, http.StatusBadRequest, "Invalid agency filter", err)
	}
	if err := c.Validate(&filter); err != nil {
		return responseError(c, http.StatusBadRequest, "Invalid agency filter", err)
	}

	agencies, err := h.svc.FindByName(c.Request().Context(), filter)
	if err != nil {
		return responseError(c, http.StatusInternalServerError, "Failed to list agencies", err)
	}
	return c.JSON(http.StatusOK, agencies)
}

// StatsHandler serves GET /agencies/stats as a five-number array.
func (h *AgencyHandler) StatsHandler(c echo.Context) error {
	stats, err := h.svc.FindStats(c.Request().Context())
	if err != nil {
		return responseError(c, http.StatusInternalServerError, "Failed to compute agency stats", err)
	}
	return c.JSON(http.StatusOK, stats)
}

// ExportHandler serves GET /agencies/export as an xlsx attachment.
func (h *AgencyHandler) ExportHandler(c echo.Context) error {
	var buf bytes.Buffer
	if err := h.svc.ExportReport(c.Request().Context(), &buf); err != nil {
		return responseError(c, http.StatusInternalServerError, "Failed to export agencies", err)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="agencies.xlsx"`)
	return c.Blob(http.StatusOK, xlsxContentType, buf.Bytes())
}
