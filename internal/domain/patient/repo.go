package patient

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	UpdateSessionProgress(ctx context.Context, id uuid.UUID, completed, remaining int) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Patient, int, error)
}

// ListFilter narrows patient listings. Empty fields match everything; Name is
// a case-insensitive substring match, Category a case-insensitive equality.
type ListFilter struct {
	Name     string
	Status   string
	Category string
}

// CompletedCounter reports how many appointments a patient has completed.
// The appointment package provides the production implementation.
type CompletedCounter interface {
	CountCompleted(ctx context.Context, patientID uuid.UUID) (int, error)
}
