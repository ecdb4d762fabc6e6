package rbac

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// SyncResult summarizes one synchronizer run.
type SyncResult struct {
	RoutesSeen       int
	TokensDerived    int
	PermissionsAdded int
	GrantsAdded      int
}

// GrantInvalidator drops cached grant state for a role after its grants
// change. A nil invalidator is a no-op.
type GrantInvalidator interface {
	Invalidate(ctx context.Context, role Role) error
}

// Synchronizer reconciles the permission catalog with the routing table:
// derive tokens, insert the missing ones, grant them to the administrator.
// Safe to run repeatedly and from racing instances.
type Synchronizer struct {
	repo   Repository
	cache  GrantInvalidator
	logger *slog.Logger
}

// NewSynchronizer constructs a Synchronizer. cache may be nil.
func NewSynchronizer(repo Repository, cache GrantInvalidator, logger *slog.Logger) *Synchronizer {
	return &Synchronizer{repo: repo, cache: cache, logger: logger}
}

// Synchronize runs the reconciliation for the given routes.
func (s *Synchronizer) Synchronize(ctx context.Context, routes []Route) (SyncResult, error) {
	result := SyncResult{RoutesSeen: len(routes)}

	tokens := DeriveTokens(routes)
	result.TokensDerived = len(tokens)

	existing, err := s.repo.ListPermissions(ctx)
	if err != nil {
		return result, fmt.Errorf("rbac: load catalog: %w", err)
	}
	known := make(map[Token]struct{}, len(existing))
	for _, p := range existing {
		known[Token{Resource: p.Resource, Action: p.Action}] = struct{}{}
	}

	admin, err := s.repo.EnsureRole(ctx, adminRole())
	if err != nil {
		return result, fmt.Errorf("rbac: ensure administrator: %w", err)
	}

	var granted bool
	for _, token := range tokens {
		if _, ok := known[token]; ok {
			continue
		}
		inserted, err := s.repo.InsertPermission(ctx, Permission{
			Resource:    token.Resource,
			Action:      token.Action,
			Description: describeToken(token),
		})
		if err != nil {
			return result, fmt.Errorf("rbac: insert permission %s: %w", token, err)
		}
		if inserted {
			result.PermissionsAdded++
		}
		// Grant regardless of who won the insert race, so a writer that
		// lost the row still closes the administrator gap.
		added, err := s.repo.Grant(ctx, admin.ID, token.Resource, token.Action)
		if err != nil {
			return result, fmt.Errorf("rbac: grant %s to administrator: %w", token, err)
		}
		if added {
			result.GrantsAdded++
			granted = true
		}
	}

	if granted && s.cache != nil {
		if err := s.cache.Invalidate(ctx, admin); err != nil {
			s.logger.Warn("invalidate administrator grant cache", slog.Any("error", err))
		}
	}

	s.logger.Info("permission sync complete",
		slog.Int("routes", result.RoutesSeen),
		slog.Int("tokens", result.TokensDerived),
		slog.Int("permissions_added", result.PermissionsAdded),
		slog.Int("grants_added", result.GrantsAdded))
	return result, nil
}

// describeToken builds the stored description, e.g. "list youth profiles".
func describeToken(t Token) string {
	return t.Action + " " + strings.ReplaceAll(t.Resource, "_", " ")
}
