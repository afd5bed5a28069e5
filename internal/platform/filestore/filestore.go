// Package filestore stores patient file attachments (exam scans, signed
// consent forms, exported report PDFs). It defines the FileStore interface,
// an in-memory implementation for testing and development, and an S3-backed
// implementation for production.
package filestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	ErrFileNotFound    = errors.New("file not found")
	ErrFileTooLarge    = errors.New("file exceeds maximum allowed size")
	ErrMissingFileName = errors.New("file name is required")
	ErrInvalidKind     = errors.New("file kind is not allowed")
)

// MaxFileSize is the maximum allowed attachment size in bytes (25 MB).
const MaxFileSize = 25 * 1024 * 1024

// AllowedKinds lists valid attachment kind values.
var AllowedKinds = map[string]bool{
	"exam":         true,
	"consent-form": true,
	"report-pdf":   true,
	"other":        true,
}

// FileInfo describes a stored attachment.
type FileInfo struct {
	Key         string    `json:"key"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	PatientID   string    `json:"patient_id"`
	Kind        string    `json:"kind"`
	CreatedAt   time.Time `json:"created_at"`
}

// FileStore is the contract for attachment storage backends.
type FileStore interface {
	Put(ctx context.Context, info FileInfo, content io.Reader) (*FileInfo, error)
	Get(ctx context.Context, key string) (io.ReadCloser, *FileInfo, error)
	Delete(ctx context.Context, key string) error
	ListByPatient(ctx context.Context, patientID string) ([]*FileInfo, error)
}

// makeKey builds the storage key: kind/patientID/timestamp-filename. The
// timestamp prefix keeps repeated uploads of the same file name distinct.
func makeKey(info FileInfo, now time.Time) string {
	name := path.Base(strings.ReplaceAll(info.FileName, "\\", "/"))
	return fmt.Sprintf("%s/%s/%d-%s", info.Kind, info.PatientID, now.UnixMilli(), name)
}

func validateInfo(info FileInfo) error {
	if info.FileName == "" {
		return ErrMissingFileName
	}
	if !AllowedKinds[info.Kind] {
		return fmt.Errorf("%w: %s", ErrInvalidKind, info.Kind)
	}
	return nil
}

type storedFile struct {
	info    FileInfo
	content []byte
}

// MemoryStore is a thread-safe in-memory FileStore for testing and dev.
type MemoryStore struct {
	mu    sync.RWMutex
	files map[string]*storedFile
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{files: make(map[string]*storedFile)}
}

func (s *MemoryStore) Put(_ context.Context, info FileInfo, content io.Reader) (*FileInfo, error) {
	if err := validateInfo(info); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(content, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading content: %w", err)
	}
	if int64(len(data)) > MaxFileSize {
		return nil, ErrFileTooLarge
	}

	info.Key = makeKey(info, time.Now())
	info.Size = int64(len(data))
	info.CreatedAt = time.Now().UTC()

	s.mu.Lock()
	s.files[info.Key] = &storedFile{info: info, content: data}
	s.mu.Unlock()

	out := info
	return &out, nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (io.ReadCloser, *FileInfo, error) {
	s.mu.RLock()
	f, ok := s.files[key]
	s.mu.RUnlock()

	if !ok {
		return nil, nil, ErrFileNotFound
	}
	info := f.info
	return io.NopCloser(bytes.NewReader(f.content)), &info, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[key]; !ok {
		return ErrFileNotFound
	}
	delete(s.files, key)
	return nil
}

func (s *MemoryStore) ListByPatient(_ context.Context, patientID string) ([]*FileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*FileInfo
	for _, f := range s.files {
		if f.info.PatientID != patientID {
			continue
		}
		info := f.info
		matched = append(matched, &info)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return matched, nil
}
