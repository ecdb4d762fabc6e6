package businesses

import (
	"context"
	"strings"

	"github.com/pathlight-hq/pathlight/internal/shared"
)

// Service handles partner business logic.
type Service struct {
	repo Repository
}

// NewService builds a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Business, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Business, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, business Business) (Business, error) {
	business.ContactEmail = strings.ToLower(strings.TrimSpace(business.ContactEmail))
	return s.repo.Create(ctx, business)
}

func (s *Service) Update(ctx context.Context, id int64, business Business) (Business, error) {
	business.ID = id
	business.ContactEmail = strings.ToLower(strings.TrimSpace(business.ContactEmail))
	return s.repo.Update(ctx, business)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}
