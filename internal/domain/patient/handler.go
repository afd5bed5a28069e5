package patient

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/rehabdesk/clinic/internal/platform/auth"
	"github.com/rehabdesk/clinic/internal/platform/export"
	"github.com/rehabdesk/clinic/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole("admin", "physiotherapist", "coach", "psychologist", "receptionist"))
	read.GET("/patients", h.List)
	read.GET("/patients/export.csv", h.ExportCSV)
	read.GET("/patients/:id", h.Get)

	write := api.Group("", auth.RequireRole("admin", "physiotherapist", "coach", "psychologist"))
	write.POST("/patients", h.Create)
	write.PUT("/patients/:id", h.Update)
	write.POST("/patients/:id/refresh-progress", h.RefreshProgress)
	write.DELETE("/patients/:id", h.Delete)
}

func (h *Handler) Create(c echo.Context) error {
	var p Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.Create(c.Request().Context(), &p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var p Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p.ID = id
	if err := h.svc.Update(c.Request().Context(), &p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) RefreshProgress(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.RefreshSessionProgress(c.Request().Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}
	return c.NoContent(http.StatusNoContent)
}

func listFilter(c echo.Context) ListFilter {
	return ListFilter{
		Name:     c.QueryParam("name"),
		Status:   c.QueryParam("status"),
		Category: c.QueryParam("category"),
	}
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), listFilter(c), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

// ExportCSV streams the filtered patient list as a CSV download. An empty
// result set yields no file, just a "no data" response.
func (h *Handler) ExportCSV(c echo.Context) error {
	items, _, err := h.svc.List(c.Request().Context(), listFilter(c), pagination.MaxLimit, 0)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	header := []string{"name", "status", "category", "total_sessions", "completed_sessions", "remaining_sessions"}
	rows := make([][]string, 0, len(items))
	for _, p := range items {
		total := ""
		if p.TotalSessions != nil {
			total = strconv.Itoa(*p.TotalSessions)
		}
		rows = append(rows, []string{
			p.Name, p.Status, p.Category, total,
			strconv.Itoa(p.CompletedSessions), strconv.Itoa(p.RemainingSessions),
		})
	}

	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, header, rows); err != nil {
		if errors.Is(err, export.ErrNoRows) {
			return echo.NewHTTPError(http.StatusNotFound, "no data to export")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	c.Response().Header().Set("Content-Disposition", `attachment; filename="patients.csv"`)
	return c.Blob(http.StatusOK, "text/csv", buf.Bytes())
}
