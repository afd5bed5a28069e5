package staff

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var validRoles = map[string]bool{
	"admin":           true,
	"physiotherapist": true,
	"coach":           true,
	"psychologist":    true,
	"receptionist":    true,
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, st *Staff) error {
	if strings.TrimSpace(st.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if strings.TrimSpace(st.Email) == "" {
		return fmt.Errorf("email is required")
	}
	if !validRoles[st.Role] {
		return fmt.Errorf("invalid role: %s", st.Role)
	}
	st.Active = true
	return s.repo.Create(ctx, st)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Staff, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, st *Staff) error {
	if !validRoles[st.Role] {
		return fmt.Errorf("invalid role: %s", st.Role)
	}
	return s.repo.Update(ctx, st)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, activeOnly bool, limit, offset int) ([]*Staff, int, error) {
	return s.repo.List(ctx, activeOnly, limit, offset)
}
