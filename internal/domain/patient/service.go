package patient

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var validStatuses = map[string]bool{
	"pending":   true,
	"ongoing":   true,
	"completed": true,
	"cancelled": true,
}

type Service struct {
	repo      Repository
	completed CompletedCounter
	logger    zerolog.Logger
}

func NewService(repo Repository, completed CompletedCounter, logger zerolog.Logger) *Service {
	return &Service{repo: repo, completed: completed, logger: logger}
}

func (s *Service) Create(ctx context.Context, p *Patient) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if p.Status == "" {
		p.Status = "pending"
	}
	if !validStatuses[p.Status] {
		return fmt.Errorf("invalid status: %s", p.Status)
	}
	if p.TotalSessions != nil && *p.TotalSessions < 0 {
		return fmt.Errorf("total_sessions must not be negative")
	}
	if r := ComputeRemaining(p.TotalSessions, 0); r != nil {
		p.RemainingSessions = *r
	}
	return s.repo.Create(ctx, p)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, p *Patient) error {
	if !validStatuses[p.Status] {
		return fmt.Errorf("invalid status: %s", p.Status)
	}
	if p.TotalSessions != nil && *p.TotalSessions < 0 {
		return fmt.Errorf("total_sessions must not be negative")
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return err
	}
	// A changed prescription alters the derived counts.
	return s.RefreshSessionProgress(ctx, p.ID)
}

func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	if !validStatuses[status] {
		return fmt.Errorf("invalid status: %s", status)
	}
	return s.repo.UpdateStatus(ctx, id, status)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Patient, int, error) {
	if filter.Status != "" && !validStatuses[filter.Status] {
		return nil, 0, fmt.Errorf("invalid status: %s", filter.Status)
	}
	return s.repo.List(ctx, filter, limit, offset)
}
