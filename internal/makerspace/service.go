package makerspace

import (
	"context"
	"fmt"

	"github.com/pathlight-hq/pathlight/internal/shared"
)

// Service handles makerspace project logic, including the status
// lifecycle.
type Service struct {
	repo Repository
}

// NewService builds a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Project, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Project, error) {
	return s.repo.Get(ctx, id)
}

// Create inserts a project. New projects start planned unless a valid
// status is given.
func (s *Service) Create(ctx context.Context, project Project) (Project, error) {
	if project.Status == "" {
		project.Status = StatusPlanned
	}
	if !ValidStatus(project.Status) {
		return Project{}, fmt.Errorf("%w: %s", ErrBadStatus, project.Status)
	}
	return s.repo.Create(ctx, project)
}

// Update patches the project. Status changes must follow the forward-only
// lifecycle.
func (s *Service) Update(ctx context.Context, id int64, project Project) (Project, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return Project{}, err
	}
	if project.Status == "" {
		project.Status = current.Status
	}
	if !ValidStatus(project.Status) {
		return Project{}, fmt.Errorf("%w: %s", ErrBadStatus, project.Status)
	}
	if !ValidTransition(current.Status, project.Status) {
		return Project{}, fmt.Errorf("%w: %s to %s", ErrBadTransition, current.Status, project.Status)
	}
	project.ID = id
	return s.repo.Update(ctx, project)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}
