package mentors

import (
	"context"
	"strings"

	"github.com/pathlight-hq/pathlight/internal/shared"
)

// Service handles mentor and mentor business logic.
type Service struct {
	repo Repository
}

// NewService builds a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Mentor, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Mentor, error) {
	return s.repo.Get(ctx, id)
}

// Create registers a mentor, optionally with initial businesses, in one
// transaction.
func (s *Service) Create(ctx context.Context, mentor Mentor, businesses []Business) (Mentor, error) {
	mentor.Email = strings.ToLower(strings.TrimSpace(mentor.Email))
	return s.repo.CreateWithBusinesses(ctx, mentor, businesses)
}

func (s *Service) Update(ctx context.Context, id int64, mentor Mentor) (Mentor, error) {
	mentor.ID = id
	mentor.Email = strings.ToLower(strings.TrimSpace(mentor.Email))
	return s.repo.Update(ctx, mentor)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) ListBusinesses(ctx context.Context, mentorID *int64) ([]Business, error) {
	return s.repo.ListBusinesses(ctx, mentorID)
}

func (s *Service) GetBusiness(ctx context.Context, id int64) (Business, error) {
	return s.repo.GetBusiness(ctx, id)
}

// AddBusiness attaches a business to an existing mentor.
func (s *Service) AddBusiness(ctx context.Context, business Business) (Business, error) {
	if _, err := s.repo.Get(ctx, business.MentorID); err != nil {
		return Business{}, err
	}
	return s.repo.AddBusiness(ctx, business)
}

func (s *Service) DeleteBusiness(ctx context.Context, id int64) error {
	return s.repo.DeleteBusiness(ctx, id)
}
