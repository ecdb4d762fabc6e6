package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/pathlight-hq/pathlight/internal/shared"
)

var roleNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{1,63}$`)

// RoleDetail bundles a role with its grants for the admin surface.
type RoleDetail struct {
	Role   Role
	Grants []Token
}

// Service carries the role and grant administration operations. Mutations
// invalidate the grant cache and leave an audit trail.
type Service struct {
	repo   Repository
	cache  GrantInvalidator
	audit  *shared.AuditLogger
	logger *slog.Logger
}

// NewService constructs a Service. cache and audit may be nil.
func NewService(repo Repository, cache GrantInvalidator, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	return &Service{repo: repo, cache: cache, audit: audit, logger: logger}
}

// ListRoles returns all roles ordered by name.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// GetRole fetches a role with its grants.
func (s *Service) GetRole(ctx context.Context, id int64) (RoleDetail, error) {
	role, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return RoleDetail{}, err
	}
	grants, err := s.repo.GrantsForRole(ctx, id)
	if err != nil {
		return RoleDetail{}, err
	}
	return RoleDetail{Role: role, Grants: grants}, nil
}

// CreateRole inserts a new editable role. The display name defaults to a
// title-cased rendering of the name.
func (s *Service) CreateRole(ctx context.Context, name, displayName string) (Role, error) {
	name = strings.TrimSpace(name)
	if !roleNamePattern.MatchString(name) {
		return Role{}, ErrInvalidRoleName
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = DisplayName(name)
	}
	role, err := s.repo.CreateRole(ctx, Role{
		Name:        name,
		DisplayName: displayName,
		IsSystem:    false,
		IsEditable:  true,
		IsActive:    true,
	})
	if err != nil {
		return Role{}, err
	}
	s.recordAudit(ctx, "role.create", role.ID, map[string]any{"name": role.Name})
	return role, nil
}

// UpdateRole patches display name and active flag. Locked roles reject the
// change.
func (s *Service) UpdateRole(ctx context.Context, id int64, displayName *string, isActive *bool) (Role, error) {
	role, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return Role{}, err
	}
	if !role.IsEditable {
		return Role{}, ErrRoleNotEditable
	}
	if displayName != nil {
		trimmed := strings.TrimSpace(*displayName)
		if trimmed == "" {
			trimmed = DisplayName(role.Name)
		}
		role.DisplayName = trimmed
	}
	if isActive != nil {
		role.IsActive = *isActive
	}
	updated, err := s.repo.UpdateRole(ctx, role)
	if err != nil {
		return Role{}, err
	}
	s.invalidate(ctx, updated)
	s.recordAudit(ctx, "role.update", updated.ID, map[string]any{
		"display_name": updated.DisplayName,
		"is_active":    updated.IsActive,
	})
	return updated, nil
}

// DeleteRole removes a role and, through the cascade, its grants. System
// roles are permanent.
func (s *Service) DeleteRole(ctx context.Context, id int64) error {
	role, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return err
	}
	if role.IsSystem {
		return ErrSystemRole
	}
	if err := s.repo.DeleteRole(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, role)
	s.recordAudit(ctx, "role.delete", role.ID, map[string]any{"name": role.Name})
	return nil
}

// ListPermissions returns the catalog ordered by resource then action.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.repo.ListPermissions(ctx)
}

// GrantPermission adds a grant. The token must already exist in the
// catalog and the role must be editable.
func (s *Service) GrantPermission(ctx context.Context, roleID int64, resource, action string) error {
	role, token, err := s.grantTarget(ctx, roleID, resource, action)
	if err != nil {
		return err
	}
	if _, err := s.repo.Grant(ctx, role.ID, token.Resource, token.Action); err != nil {
		return err
	}
	s.invalidate(ctx, role)
	s.recordAudit(ctx, "role.grant", role.ID, map[string]any{"permission": token.String()})
	return nil
}

// RevokePermission removes a grant from an editable role.
func (s *Service) RevokePermission(ctx context.Context, roleID int64, resource, action string) error {
	role, token, err := s.grantTarget(ctx, roleID, resource, action)
	if err != nil {
		return err
	}
	if err := s.repo.Revoke(ctx, role.ID, token.Resource, token.Action); err != nil {
		return err
	}
	s.invalidate(ctx, role)
	s.recordAudit(ctx, "role.revoke", role.ID, map[string]any{"permission": token.String()})
	return nil
}

func (s *Service) grantTarget(ctx context.Context, roleID int64, resource, action string) (Role, Token, error) {
	role, err := s.repo.GetRole(ctx, roleID)
	if err != nil {
		return Role{}, Token{}, err
	}
	if !role.IsEditable {
		return Role{}, Token{}, ErrRoleNotEditable
	}
	token := Token{Resource: strings.TrimSpace(resource), Action: strings.TrimSpace(action)}
	if _, err := s.repo.GetPermission(ctx, token.Resource, token.Action); err != nil {
		if errors.Is(err, ErrNotFound) {
			return Role{}, Token{}, fmt.Errorf("%w: %s", ErrUnknownPermission, token)
		}
		return Role{}, Token{}, err
	}
	return role, token, nil
}

func (s *Service) invalidate(ctx context.Context, role Role) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, role); err != nil {
		s.logger.Warn("invalidate grant cache", slog.Any("error", err), slog.String("role", role.Name))
	}
}

func (s *Service) recordAudit(ctx context.Context, action string, roleID int64, meta map[string]any) {
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
		Entity:   "role",
		EntityID: strconv.FormatInt(roleID, 10),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("record audit log", slog.Any("error", err), slog.String("action", action))
	}
}
