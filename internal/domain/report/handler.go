package report

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/rehabdesk/clinic/internal/domain/patient"
	"github.com/rehabdesk/clinic/internal/platform/auth"
	"github.com/rehabdesk/clinic/internal/platform/events"
	"github.com/rehabdesk/clinic/internal/platform/export"
)

// PatientLookup resolves patient names for stored rows and PDF headers.
type PatientLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

type Handler struct {
	svc      *Service
	patients PatientLookup
	bus      *events.Bus

	mu       sync.Mutex
	sessions map[uuid.UUID]*SessionManager
}

func NewHandler(svc *Service, patients PatientLookup, bus *events.Bus) *Handler {
	return &Handler{
		svc:      svc,
		patients: patients,
		bus:      bus,
		sessions: make(map[uuid.UUID]*SessionManager),
	}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	clinical := api.Group("", auth.RequireRole("admin", "physiotherapist", "coach", "psychologist"))
	clinical.POST("/reports/normalize-duration", h.NormalizeDuration)
	clinical.GET("/reports/:patientId/:kind", h.GetCurrent)
	clinical.PUT("/reports/:patientId/:kind", h.Save)
	clinical.GET("/reports/:patientId/:kind/versions", h.ListVersions)
	clinical.GET("/reports/:patientId/:kind/first-session", h.FirstSession)
	clinical.GET("/reports/:patientId/:kind/pdf", h.ExportPDF)
	clinical.GET("/reports/versions/:id", h.GetVersion)
	clinical.DELETE("/reports/versions/:id", h.DeleteVersion)
	clinical.POST("/reports/:patientId/drafts", h.OpenDraftSession)
	clinical.GET("/reports/drafts/:sessionId", h.DraftSession)
	clinical.PUT("/reports/drafts/:sessionId/:kind", h.EditDraft)
	clinical.DELETE("/reports/drafts/:sessionId", h.CloseDraftSession)
}

func (h *Handler) params(c echo.Context) (uuid.UUID, Kind, error) {
	pid, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return uuid.Nil, "", echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	kind, err := ParseKind(c.Param("kind"))
	if err != nil {
		return uuid.Nil, "", echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return pid, kind, nil
}

type saveBody struct {
	Payload          Payload `json:"payload"`
	SessionCompleted bool    `json:"session_completed"`
	IsExtraTreatment bool    `json:"is_extra_treatment"`
	SessionDate      string  `json:"session_date,omitempty"`
}

func (h *Handler) Save(c echo.Context) error {
	pid, kind, err := h.params(c)
	if err != nil {
		return err
	}
	var body saveBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	req := SaveRequest{
		PatientID:        pid,
		Kind:             kind,
		Payload:          body.Payload,
		Author:           auth.UserNameFromContext(c.Request().Context()),
		AuthorID:         auth.UserIDFromContext(c.Request().Context()),
		SessionCompleted: body.SessionCompleted,
		IsExtraTreatment: body.IsExtraTreatment,
	}
	if p, err := h.patients.Get(c.Request().Context(), pid); err == nil {
		req.PatientName = p.Name
	}
	if body.SessionDate != "" {
		d, err := time.Parse("2006-01-02", body.SessionDate)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "session_date must be YYYY-MM-DD")
		}
		req.SessionDate = &d
	}

	cur, err := h.svc.Save(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, ErrInvalidPayload) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, cur)
}

func (h *Handler) GetCurrent(c echo.Context) error {
	pid, kind, err := h.params(c)
	if err != nil {
		return err
	}
	cur, err := h.svc.GetCurrent(c.Request().Context(), pid, kind)
	if err != nil {
		if errors.Is(err, ErrCurrentNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "report not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, cur)
}

func (h *Handler) ListVersions(c echo.Context) error {
	pid, kind, err := h.params(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListVersions(c.Request().Context(), pid, kind)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"items": items,
		"total": len(items),
	})
}

func (h *Handler) GetVersion(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	v, err := h.svc.GetVersion(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "version not found")
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) DeleteVersion(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteVersion(c.Request().Context(), id); err != nil {
		if errors.Is(err, ErrVersionNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "version not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// FirstSession reports whether the given consultation date is the patient's
// first session for this report kind, which decides the intake-vs-follow-up
// form.
func (h *Handler) FirstSession(c echo.Context) error {
	pid, kind, err := h.params(c)
	if err != nil {
		return err
	}
	chosen := time.Now()
	if d := c.QueryParam("date"); d != "" {
		chosen, err = time.Parse("2006-01-02", d)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "date must be YYYY-MM-DD")
		}
	}

	earliest, err := h.svc.EarliestVersionDate(c.Request().Context(), pid, kind)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]bool{
		"first_session": FirstSession(chosen, earliest),
	})
}

// ExportPDF renders the current report, or a historical version when
// ?version_id= is given, as a downloadable PDF.
func (h *Handler) ExportPDF(c echo.Context) error {
	pid, kind, err := h.params(c)
	if err != nil {
		return err
	}

	var payload Payload
	var author string
	var at time.Time
	version := 0

	if vid := c.QueryParam("version_id"); vid != "" {
		id, err := uuid.Parse(vid)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid version_id")
		}
		v, err := h.svc.GetVersion(c.Request().Context(), id)
		if err != nil {
			return echo.NewHTTPError(http.StatusNotFound, "version not found")
		}
		payload, author, at, version = v.Payload, v.CreatedBy, v.CreatedAt, v.Version
	} else {
		cur, err := h.svc.GetCurrent(c.Request().Context(), pid, kind)
		if err != nil {
			if errors.Is(err, ErrCurrentNotFound) {
				return echo.NewHTTPError(http.StatusNotFound, "report not found")
			}
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		payload, author, at = cur.Payload, cur.UpdatedBy, cur.UpdatedAt
	}

	patientName := c.Param("patientId")
	if p, err := h.patients.Get(c.Request().Context(), pid); err == nil {
		patientName = p.Name
	}

	doc := export.ReportDocument{
		Title:       reportTitle(kind),
		PatientName: patientName,
		ReportType:  string(kind),
		Version:     version,
		CreatedBy:   author,
		CreatedAt:   at,
		Sections:    payloadSections(payload),
	}
	out, err := export.RenderReportPDF(doc)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	c.Response().Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="%s-%s.pdf"`, kind, pid))
	return c.Blob(http.StatusOK, "application/pdf", out)
}

func reportTitle(kind Kind) string {
	switch kind {
	case KindPhysiotherapy:
		return "Physiotherapy Report"
	case KindStrengthConditioning:
		return "Strength & Conditioning Report"
	case KindPsychology:
		return "Psychology Report"
	default:
		return "Clinical Report"
	}
}

// payloadSections flattens the payload into labelled PDF sections, sorted by
// field name for stable output.
func payloadSections(p Payload) []export.Section {
	fields := make([]string, 0, len(p))
	for k := range p {
		fields = append(fields, k)
	}
	sort.Strings(fields)

	sections := make([]export.Section, 0, len(fields))
	for _, field := range fields {
		sections = append(sections, export.Section{
			Heading: fieldLabel(field),
			Lines:   valueLines(p[field]),
		})
	}
	return sections
}

func fieldLabel(field string) string {
	words := strings.Split(field, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// NormalizeDuration snaps a raw duration input to the allowed minute codes.
// The form calls it as fields are entered so the user sees the stored value.
func (h *Handler) NormalizeDuration(c echo.Context) error {
	var body struct {
		Value string `json:"value"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	norm, err := NormalizeDuration(body.Value)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"normalized": norm,
	})
}

// OpenDraftSession starts an editing session for a patient. The session
// subscribes to the report change feed; remote saves land on clean drafts and
// flag diverged ones. ?read_only=true opens a follower view that always
// tracks the server.
func (h *Handler) OpenDraftSession(c echo.Context) error {
	pid, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	readOnly := c.QueryParam("read_only") == "true"

	m := NewSessionManager(h.bus, pid, readOnly)
	for _, kind := range []Kind{KindPhysiotherapy, KindStrengthConditioning, KindPsychology} {
		cur, err := h.svc.GetCurrent(c.Request().Context(), pid, kind)
		if err != nil {
			continue
		}
		m.MarkSaved(kind, cur.Payload)
	}

	id := uuid.New()
	h.mu.Lock()
	h.sessions[id] = m
	h.mu.Unlock()

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"session_id": id,
		"read_only":  readOnly,
	})
}

func (h *Handler) session(c echo.Context) (*SessionManager, error) {
	id, err := uuid.Parse(c.Param("sessionId"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid session id")
	}
	h.mu.Lock()
	m, ok := h.sessions[id]
	h.mu.Unlock()
	if !ok {
		return nil, echo.NewHTTPError(http.StatusNotFound, "draft session not found")
	}
	return m, nil
}

// DraftSession reports every draft's state and data for the session.
func (h *Handler) DraftSession(c echo.Context) error {
	m, err := h.session(c)
	if err != nil {
		return err
	}
	out := make(map[string]interface{}, 3)
	for _, kind := range []Kind{KindPhysiotherapy, KindStrengthConditioning, KindPsychology} {
		out[string(kind)] = map[string]interface{}{
			"state":   m.State(kind).String(),
			"payload": m.Snapshot(kind),
		}
	}
	return c.JSON(http.StatusOK, out)
}

// EditDraft records a local edit on one draft and returns its new state.
func (h *Handler) EditDraft(c echo.Context) error {
	m, err := h.session(c)
	if err != nil {
		return err
	}
	kind, err := ParseKind(c.Param("kind"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	var body struct {
		Payload Payload `json:"payload"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	m.Edit(kind, body.Payload)
	return c.JSON(http.StatusOK, map[string]string{
		"state": m.State(kind).String(),
	})
}

// CloseDraftSession releases the session and its change-feed subscription.
func (h *Handler) CloseDraftSession(c echo.Context) error {
	id, err := uuid.Parse(c.Param("sessionId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid session id")
	}
	h.mu.Lock()
	m, ok := h.sessions[id]
	delete(h.sessions, id)
	h.mu.Unlock()
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "draft session not found")
	}
	m.Close()
	return c.NoContent(http.StatusNoContent)
}

func valueLines(v interface{}) []string {
	switch val := v.(type) {
	case nil:
		return []string{"-"}
	case string:
		return []string{val}
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		lines := make([]string, 0, len(keys))
		for _, k := range keys {
			lines = append(lines, fmt.Sprintf("%s: %v", fieldLabel(k), val[k]))
		}
		return lines
	case []interface{}:
		lines := make([]string, 0, len(val))
		for _, item := range val {
			lines = append(lines, fmt.Sprintf("- %v", item))
		}
		return lines
	default:
		return []string{fmt.Sprintf("%v", val)}
	}
}
