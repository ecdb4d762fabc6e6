package rbac

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

// DisplayName derives a human readable label from a role or resource name,
// e.g. "youth_profiles" becomes "Youth Profiles".
func DisplayName(name string) string {
	return titleCaser.String(strings.ReplaceAll(name, "_", " "))
}

func adminRole() Role {
	return Role{
		Name:        AdminRoleName,
		DisplayName: DisplayName(AdminRoleName),
		IsSystem:    true,
		IsEditable:  false,
		IsActive:    true,
	}
}

// baselineTokens is the hand-enumerated floor of the catalog. The
// synchronizer discovers the same tokens from the routing table; keeping
// the explicit list means a routing regression cannot silently empty the
// administrator's grants.
var baselineTokens = []Token{
	{Resource: "youth_profiles", Action: "list"},
	{Resource: "youth_profiles", Action: "view"},
	{Resource: "youth_profiles", Action: "create"},
	{Resource: "youth_profiles", Action: "edit"},
	{Resource: "youth_profiles", Action: "delete"},
	{Resource: "mentors", Action: "list"},
	{Resource: "mentors", Action: "view"},
	{Resource: "mentors", Action: "create"},
	{Resource: "mentors", Action: "edit"},
	{Resource: "mentors", Action: "delete"},
	{Resource: "businesses", Action: "list"},
	{Resource: "businesses", Action: "view"},
	{Resource: "businesses", Action: "create"},
	{Resource: "businesses", Action: "edit"},
	{Resource: "businesses", Action: "delete"},
	{Resource: "makerspace", Action: "list"},
	{Resource: "makerspace", Action: "view"},
	{Resource: "makerspace", Action: "create"},
	{Resource: "makerspace", Action: "edit"},
	{Resource: "makerspace", Action: "delete"},
	{Resource: "users", Action: "list"},
	{Resource: "users", Action: "view"},
	{Resource: "users", Action: "create"},
	{Resource: "users", Action: "edit"},
	{Resource: "users", Action: "delete"},
	{Resource: "roles", Action: "manage"},
	{Resource: "permissions", Action: "manage"},
	{Resource: "reports", Action: "view"},
	{Resource: "jobs", Action: "list"},
	{Resource: "jobs", Action: "create"},
}

// BaselineTokens returns a copy of the baseline catalog floor.
func BaselineTokens() []Token {
	tokens := make([]Token, len(baselineTokens))
	copy(tokens, baselineTokens)
	return tokens
}

// BootstrapResult summarizes one bootstrap run.
type BootstrapResult struct {
	PermissionsEnsured int
	GrantsAdded        int
}

// Bootstrapper ensures the administrator role exists with its reserved
// flags and holds every permission in the catalog. Deliberately overlaps
// with the synchronizer: either can repair what the other missed.
type Bootstrapper struct {
	repo   Repository
	cache  GrantInvalidator
	logger *slog.Logger
}

// NewBootstrapper constructs a Bootstrapper. cache may be nil.
func NewBootstrapper(repo Repository, cache GrantInvalidator, logger *slog.Logger) *Bootstrapper {
	return &Bootstrapper{repo: repo, cache: cache, logger: logger}
}

// Run repairs the administrator role, the baseline catalog and the
// administrator's grants.
func (b *Bootstrapper) Run(ctx context.Context) (BootstrapResult, error) {
	var result BootstrapResult

	admin, err := b.repo.EnsureRole(ctx, adminRole())
	if err != nil {
		return result, fmt.Errorf("rbac: ensure administrator: %w", err)
	}

	for _, token := range baselineTokens {
		inserted, err := b.repo.InsertPermission(ctx, Permission{
			Resource:    token.Resource,
			Action:      token.Action,
			Description: describeToken(token),
		})
		if err != nil {
			return result, fmt.Errorf("rbac: ensure permission %s: %w", token, err)
		}
		if inserted {
			result.PermissionsEnsured++
		}
	}

	// Grant the whole catalog, baseline and synced alike. This is what
	// keeps the administrator a superset after any drift.
	perms, err := b.repo.ListPermissions(ctx)
	if err != nil {
		return result, fmt.Errorf("rbac: load catalog: %w", err)
	}
	for _, perm := range perms {
		added, err := b.repo.Grant(ctx, admin.ID, perm.Resource, perm.Action)
		if err != nil {
			return result, fmt.Errorf("rbac: grant %s:%s to administrator: %w", perm.Resource, perm.Action, err)
		}
		if added {
			result.GrantsAdded++
		}
	}

	if result.GrantsAdded > 0 && b.cache != nil {
		if err := b.cache.Invalidate(ctx, admin); err != nil {
			b.logger.Warn("invalidate administrator grant cache", slog.Any("error", err))
		}
	}

	b.logger.Info("administrator bootstrap complete",
		slog.Int("permissions_ensured", result.PermissionsEnsured),
		slog.Int("grants_added", result.GrantsAdded))
	return result, nil
}
