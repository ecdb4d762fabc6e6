package youth

import (
	"context"

	"github.com/pathlight-hq/pathlight/internal/shared"
)

// Service handles youth profile business logic.
type Service struct {
	repo Repository
}

// NewService builds a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Profile, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Profile, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, profile Profile) (Profile, error) {
	return s.repo.Create(ctx, profile)
}

func (s *Service) Update(ctx context.Context, id int64, profile Profile) (Profile, error) {
	profile.ID = id
	return s.repo.Update(ctx, profile)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}
