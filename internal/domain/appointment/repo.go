package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	Complete(ctx context.Context, id uuid.UUID, isExtraTreatment bool, completedAt time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Appointment, int, error)

	// FindOpenByDate returns the open (pending or ongoing) appointment whose
	// scheduled day matches date, or ErrNotFound.
	FindOpenByDate(ctx context.Context, patientID uuid.UUID, date time.Time) (*Appointment, error)
	// FindLatestOpen returns the most recent open appointment, or ErrNotFound.
	FindLatestOpen(ctx context.Context, patientID uuid.UUID) (*Appointment, error)

	CountCompleted(ctx context.Context, patientID uuid.UUID) (int, error)
	// AllClosed reports whether every appointment for the patient is
	// completed or cancelled. A patient with no appointments counts as closed.
	AllClosed(ctx context.Context, patientID uuid.UUID) (bool, error)
}

// ListFilter narrows appointment listings; nil/empty fields match everything.
// Date matches the scheduled day.
type ListFilter struct {
	PatientID *uuid.UUID
	StaffID   *uuid.UUID
	Date      *time.Time
	Status    string
}
