package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/pathlight-hq/pathlight/internal/auth"
	"github.com/pathlight-hq/pathlight/internal/rbac"
	"github.com/pathlight-hq/pathlight/internal/shared"
)

// RoleChecker resolves role names against the catalog. The rbac repository
// and its cache both satisfy it.
type RoleChecker interface {
	RoleByName(ctx context.Context, name string) (rbac.Role, error)
}

// CreateParams carries the fields for a new account.
type CreateParams struct {
	Email    string
	Name     string
	RoleName string
	Password string
	IsActive bool
}

// UpdateParams carries the mutable account fields.
type UpdateParams struct {
	Email    string
	Name     string
	RoleName string
	IsActive bool
}

// Service handles account administration. Mutations leave an audit trail.
type Service struct {
	repo   Repository
	roles  RoleChecker
	audit  *shared.AuditLogger
	logger *slog.Logger
}

// NewService constructs a Service. audit may be nil.
func NewService(repo Repository, roles RoleChecker, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	return &Service{repo: repo, roles: roles, audit: audit, logger: logger}
}

// List returns a page of accounts plus the unfiltered total.
func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]User, int, error) {
	return s.repo.List(ctx, filters)
}

// Get fetches one account.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	return s.repo.Get(ctx, id)
}

// Create inserts an account with a bcrypt password hash. The role must
// already exist.
func (s *Service) Create(ctx context.Context, params CreateParams) (User, error) {
	roleName, err := s.checkRole(ctx, params.RoleName)
	if err != nil {
		return User{}, err
	}
	hash, err := auth.HashPassword(params.Password)
	if err != nil {
		return User{}, err
	}
	user, err := s.repo.Create(ctx, User{
		Email:        strings.ToLower(strings.TrimSpace(params.Email)),
		Name:         strings.TrimSpace(params.Name),
		RoleName:     roleName,
		PasswordHash: hash,
		IsActive:     params.IsActive,
	})
	if err != nil {
		return User{}, err
	}
	s.recordAudit(ctx, "user.create", user.ID, map[string]any{"email": user.Email, "role": user.RoleName})
	return user, nil
}

// Update patches profile fields. Passwords change through SetPassword only.
func (s *Service) Update(ctx context.Context, id int64, params UpdateParams) (User, error) {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return User{}, err
	}
	roleName, err := s.checkRole(ctx, params.RoleName)
	if err != nil {
		return User{}, err
	}
	user.Email = strings.ToLower(strings.TrimSpace(params.Email))
	user.Name = strings.TrimSpace(params.Name)
	user.RoleName = roleName
	user.IsActive = params.IsActive
	updated, err := s.repo.Update(ctx, user)
	if err != nil {
		return User{}, err
	}
	s.recordAudit(ctx, "user.update", updated.ID, map[string]any{
		"email":     updated.Email,
		"role":      updated.RoleName,
		"is_active": updated.IsActive,
	})
	return updated, nil
}

// SetPassword replaces the stored hash.
func (s *Service) SetPassword(ctx context.Context, id int64, password string) error {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePassword(ctx, id, hash); err != nil {
		return err
	}
	s.recordAudit(ctx, "user.password", id, nil)
	return nil
}

// Delete removes an account. Callers cannot delete themselves, which keeps
// at least the acting administrator alive.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if principal := shared.PrincipalFromContext(ctx); principal != nil && principal.ID == id {
		return ErrSelfDelete
	}
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, "user.delete", user.ID, map[string]any{"email": user.Email})
	return nil
}

func (s *Service) checkRole(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	role, err := s.roles.RoleByName(ctx, name)
	if err != nil {
		if errors.Is(err, rbac.ErrNotFound) {
			return "", fmt.Errorf("%w: %s", ErrUnknownRole, name)
		}
		return "", err
	}
	return role.Name, nil
}

func (s *Service) recordAudit(ctx context.Context, action string, userID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	var actorID int64
	if principal := shared.PrincipalFromContext(ctx); principal != nil {
		actorID = principal.ID
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "user",
		EntityID: strconv.FormatInt(userID, 10),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("record audit log", slog.Any("error", err), slog.String("action", action))
	}
}
