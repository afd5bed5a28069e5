package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var validStatuses = map[string]bool{
	"pending":   true,
	"paid":      true,
	"cancelled": true,
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, e *Entry) error {
	if e.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if e.Description == "" {
		return fmt.Errorf("description is required")
	}
	if e.Amount < 0 {
		return fmt.Errorf("amount must not be negative")
	}
	if e.Status == "" {
		e.Status = "pending"
	}
	if !validStatuses[e.Status] {
		return fmt.Errorf("invalid status: %s", e.Status)
	}
	if e.EntryDate.IsZero() {
		e.EntryDate = time.Now()
	}
	return s.repo.Create(ctx, e)
}

// CreateForSession records the automatic charge for a completed session.
// At most one entry may exist per appointment; a second call for the same
// appointment is a no-op and reports created=false.
func (s *Service) CreateForSession(ctx context.Context, patientID, appointmentID uuid.UUID, amount float64, date time.Time) (*Entry, bool, error) {
	exists, err := s.repo.ExistsForAppointment(ctx, appointmentID)
	if err != nil {
		return nil, false, err
	}
	if exists {
		return nil, false, nil
	}

	e := &Entry{
		PatientID:     patientID,
		AppointmentID: &appointmentID,
		Description:   "Session fee",
		Amount:        amount,
		Status:        "pending",
		EntryDate:     date,
	}
	if err := s.Create(ctx, e); err != nil {
		return nil, false, err
	}
	return e, true, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Entry, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	if !validStatuses[status] {
		return fmt.Errorf("invalid status: %s", status)
	}
	return s.repo.UpdateStatus(ctx, id, status)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Entry, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}
