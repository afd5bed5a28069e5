package patient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func TestExportCSV_NoRows(t *testing.T) {
	svc := NewService(newMockRepo(), &mockCounter{counts: nil}, zerolog.Nop())
	h := NewHandler(svc)
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/patients/export.csv", nil)
	rec := httptest.NewRecorder()

	err := h.ExportCSV(e.NewContext(req, rec))
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected HTTPError, got %v", err)
	}
	if he.Code != http.StatusNotFound {
		t.Errorf("expected 404 for empty export, got %d", he.Code)
	}
}

func TestExportCSV_WithRows(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, &mockCounter{counts: nil}, zerolog.Nop())
	if err := svc.Create(context.Background(), &Patient{Name: "Ana Silva", Status: "ongoing", Category: "dyes"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	h := NewHandler(svc)
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/patients/export.csv", nil)
	rec := httptest.NewRecorder()

	if err := h.ExportCSV(e.NewContext(req, rec)); err != nil {
		t.Fatalf("ExportCSV: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Ana Silva") {
		t.Errorf("csv missing patient row: %q", rec.Body.String())
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "patients.csv") {
		t.Errorf("unexpected content disposition: %s", cd)
	}
}
