package report

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/rehabdesk/clinic/internal/domain/patient"
	"github.com/rehabdesk/clinic/internal/platform/events"
)

type mockPatientLookup struct{ names map[uuid.UUID]string }

func (m *mockPatientLookup) Get(_ context.Context, id uuid.UUID) (*patient.Patient, error) {
	name, ok := m.names[id]
	if !ok {
		return nil, fmt.Errorf("patient not found")
	}
	return &patient.Patient{ID: id, Name: name}, nil
}

func newTestHandler() (*Handler, *svcFixture) {
	f := newSvcFixture()
	h := NewHandler(f.svc, &mockPatientLookup{names: map[uuid.UUID]string{}}, events.NewBus())
	return h, f
}

func TestNormalizeDuration_Endpoint(t *testing.T) {
	h, _ := newTestHandler()
	e := echo.New()

	req := httptest.NewRequest(http.MethodPost, "/reports/normalize-duration",
		strings.NewReader(`{"value":"1.12"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	if err := h.NormalizeDuration(e.NewContext(req, rec)); err != nil {
		t.Fatalf("NormalizeDuration: %v", err)
	}
	var body struct {
		Normalized *float64 `json:"normalized"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Normalized == nil || *body.Normalized != 1.10 {
		t.Errorf("expected 1.10, got %v", body.Normalized)
	}
}

func TestNormalizeDuration_RejectsBadInput(t *testing.T) {
	h, _ := newTestHandler()
	e := echo.New()

	req := httptest.NewRequest(http.MethodPost, "/reports/normalize-duration",
		strings.NewReader(`{"value":"abc"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	err := h.NormalizeDuration(e.NewContext(req, rec))
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func saveRequest(e *echo.Echo, pid uuid.UUID, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("patientId", "kind")
	c.SetParamValues(pid.String(), "physiotherapy")
	return c, rec
}

func TestSaveReport_InvalidFieldIs400(t *testing.T) {
	h, _ := newTestHandler()
	e := echo.New()

	c, _ := saveRequest(e, uuid.New(), `{"payload":{"rpe":7}}`)
	err := h.Save(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Errorf("field outside the variant's schema should be 400, got %v", err)
	}
}

func TestSaveReport_StorageFailureIs500(t *testing.T) {
	h, f := newTestHandler()
	e := echo.New()
	f.current.upsertErr = fmt.Errorf("connection refused")

	c, _ := saveRequest(e, uuid.New(), `{"payload":{"history":"x"}}`)
	err := h.Save(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusInternalServerError {
		t.Errorf("write failure should be 500, got %v", err)
	}
}

func TestDraftSession_Lifecycle(t *testing.T) {
	h, _ := newTestHandler()
	e := echo.New()
	pid := uuid.New()

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("patientId")
	c.SetParamValues(pid.String())
	if err := h.OpenDraftSession(c); err != nil {
		t.Fatalf("OpenDraftSession: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var opened struct {
		SessionID uuid.UUID `json:"session_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &opened); err != nil {
		t.Fatalf("decode: %v", err)
	}

	// A local edit moves the draft to dirty.
	req = httptest.NewRequest(http.MethodPut, "/",
		strings.NewReader(`{"payload":{"history":"edited"}}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	c.SetParamNames("sessionId", "kind")
	c.SetParamValues(opened.SessionID.String(), string(KindPhysiotherapy))
	if err := h.EditDraft(c); err != nil {
		t.Fatalf("EditDraft: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"dirty"`) {
		t.Errorf("expected dirty state, got %s", rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	c.SetParamNames("sessionId")
	c.SetParamValues(opened.SessionID.String())
	if err := h.DraftSession(c); err != nil {
		t.Fatalf("DraftSession: %v", err)
	}
	var states map[string]struct {
		State string `json:"state"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &states); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if states[string(KindPhysiotherapy)].State != "dirty" {
		t.Errorf("physio draft should be dirty, got %q", states[string(KindPhysiotherapy)].State)
	}
	if states[string(KindPsychology)].State != "clean" {
		t.Errorf("untouched draft should be clean, got %q", states[string(KindPsychology)].State)
	}

	req = httptest.NewRequest(http.MethodDelete, "/", nil)
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	c.SetParamNames("sessionId")
	c.SetParamValues(opened.SessionID.String())
	if err := h.CloseDraftSession(c); err != nil {
		t.Fatalf("CloseDraftSession: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}

	// Closing twice is a 404: the session is gone.
	req = httptest.NewRequest(http.MethodDelete, "/", nil)
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	c.SetParamNames("sessionId")
	c.SetParamValues(opened.SessionID.String())
	err := h.CloseDraftSession(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Errorf("expected 404 on closed session, got %v", err)
	}
}

func TestDraftSession_UnknownSession(t *testing.T) {
	h, _ := newTestHandler()
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("sessionId")
	c.SetParamValues(uuid.NewString())
	err := h.DraftSession(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}
