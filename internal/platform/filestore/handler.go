package filestore

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handler provides Echo HTTP handlers for attachment operations.
type Handler struct {
	store FileStore
}

func NewHandler(store FileStore) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes mounts attachment routes on the supplied Echo group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/files/upload", h.handleUpload)
	g.GET("/files/patient/:patientId", h.handleListByPatient)
	g.GET("/files/*", h.handleDownload)
	g.DELETE("/files/*", h.handleDelete)
}

func (h *Handler) handleUpload(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "file is required"})
	}

	src, err := file.Open()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to open uploaded file"})
	}
	defer src.Close()

	contentType := file.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	info := FileInfo{
		FileName:    file.Filename,
		ContentType: contentType,
		PatientID:   c.FormValue("patient_id"),
		Kind:        c.FormValue("kind"),
	}

	result, err := h.store.Put(c.Request().Context(), info, src)
	if err != nil {
		switch {
		case errors.Is(err, ErrFileTooLarge):
			return c.JSON(http.StatusRequestEntityTooLarge, map[string]string{"error": err.Error()})
		case errors.Is(err, ErrMissingFileName), errors.Is(err, ErrInvalidKind):
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		default:
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
	}

	return c.JSON(http.StatusCreated, result)
}

func (h *Handler) handleDownload(c echo.Context) error {
	key := c.Param("*")

	rc, info, err := h.store.Get(c.Request().Context(), key)
	if err != nil {
		if errors.Is(err, ErrFileNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	defer rc.Close()

	c.Response().Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, info.FileName))
	return c.Stream(http.StatusOK, info.ContentType, rc)
}

func (h *Handler) handleDelete(c echo.Context) error {
	key := c.Param("*")

	if err := h.store.Delete(c.Request().Context(), key); err != nil {
		if errors.Is(err, ErrFileNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) handleListByPatient(c echo.Context) error {
	patientID := c.Param("patientId")

	items, err := h.store.ListByPatient(c.Request().Context(), patientID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"items": items,
		"total": len(items),
	})
}
