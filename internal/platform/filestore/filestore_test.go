package filestore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestMemoryStore_PutAndGet(t *testing.T) {
	store := NewMemoryStore()

	info, err := store.Put(context.Background(), FileInfo{
		FileName:    "exam.pdf",
		ContentType: "application/pdf",
		PatientID:   "p1",
		Kind:        "exam",
	}, strings.NewReader("pdf-bytes"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if info.Size != int64(len("pdf-bytes")) {
		t.Errorf("expected size %d, got %d", len("pdf-bytes"), info.Size)
	}
	if !strings.HasPrefix(info.Key, "exam/p1/") {
		t.Errorf("unexpected key layout: %s", info.Key)
	}

	rc, got, err := store.Get(context.Background(), info.Key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer rc.Close()

	data, _ := io.ReadAll(rc)
	if string(data) != "pdf-bytes" {
		t.Errorf("content mismatch: %q", data)
	}
	if got.FileName != "exam.pdf" {
		t.Errorf("expected file name exam.pdf, got %s", got.FileName)
	}
}

func TestMemoryStore_RejectsUnknownKind(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Put(context.Background(), FileInfo{
		FileName:  "x.png",
		PatientID: "p1",
		Kind:      "selfie",
	}, strings.NewReader("x"))
	if !errors.Is(err, ErrInvalidKind) {
		t.Fatalf("expected ErrInvalidKind, got %v", err)
	}
}

func TestMemoryStore_RequiresFileName(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Put(context.Background(), FileInfo{PatientID: "p1", Kind: "exam"}, strings.NewReader("x"))
	if !errors.Is(err, ErrMissingFileName) {
		t.Fatalf("expected ErrMissingFileName, got %v", err)
	}
}

func TestMemoryStore_DeleteMissing(t *testing.T) {
	store := NewMemoryStore()

	if err := store.Delete(context.Background(), "exam/p1/nope"); !errors.Is(err, ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound, got %v", err)
	}
}

func TestMemoryStore_ListByPatient(t *testing.T) {
	store := NewMemoryStore()

	for _, p := range []string{"p1", "p1", "p2"} {
		if _, err := store.Put(context.Background(), FileInfo{
			FileName:  "f.pdf",
			PatientID: p,
			Kind:      "report-pdf",
		}, strings.NewReader("x")); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	items, err := store.ListByPatient(context.Background(), "p1")
	if err != nil {
		t.Fatalf("ListByPatient: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("expected 2 items for p1, got %d", len(items))
	}
}

func TestHandler_UploadAndDownload(t *testing.T) {
	store := NewMemoryStore()
	h := NewHandler(store)
	e := echo.New()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreateFormFile("file", "consent.pdf")
	part.Write([]byte("signed"))
	mw.WriteField("patient_id", "p1")
	mw.WriteField("kind", "consent-form")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/files/upload", &body)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	rec := httptest.NewRecorder()

	if err := h.handleUpload(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handleUpload: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	items, _ := store.ListByPatient(context.Background(), "p1")
	if len(items) != 1 {
		t.Fatalf("expected 1 stored file, got %d", len(items))
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	rec = httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/files/*")
	c.SetParamNames("*")
	c.SetParamValues(items[0].Key)

	if err := h.handleDownload(c); err != nil {
		t.Fatalf("handleDownload: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "signed" {
		t.Errorf("content mismatch: %q", rec.Body.String())
	}
}

func TestHandler_UploadMissingFile(t *testing.T) {
	h := NewHandler(NewMemoryStore())
	e := echo.New()

	req := httptest.NewRequest(http.MethodPost, "/files/upload", nil)
	rec := httptest.NewRecorder()

	if err := h.handleUpload(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handleUpload: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}
