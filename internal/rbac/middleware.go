package rbac

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/pathlight-hq/pathlight/internal/observability"
	"github.com/pathlight-hq/pathlight/internal/platform/httpx"
	"github.com/pathlight-hq/pathlight/internal/shared"
)

// GrantChecker answers the two point reads behind an authorization
// decision. The Postgres repository satisfies it directly; GrantCache wraps
// it with a Redis layer under the same contract.
type GrantChecker interface {
	RoleByName(ctx context.Context, name string) (Role, error)
	HasGrant(ctx context.Context, roleID int64, resource, action string) (bool, error)
}

// Middleware guards routes with permission checks. Every failure mode
// denies: missing principal, unknown role, missing grant, store error.
type Middleware struct {
	Checker GrantChecker
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// NewMiddleware constructs the authorization middleware.
func NewMiddleware(checker GrantChecker, logger *slog.Logger, metrics *observability.Metrics) Middleware {
	return Middleware{Checker: checker, Logger: logger, Metrics: metrics}
}

// Require authorizes the request against one permission token before
// passing it on.
func (m Middleware) Require(resource, action string) func(http.Handler) http.Handler {
	token := Token{Resource: resource, Action: action}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := shared.PrincipalFromContext(r.Context())
			if principal == nil {
				m.record("deny_unauthenticated")
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
				return
			}

			// The administrator bypass is the single place the reserved
			// role short-circuits checks. Exact match: case variants are
			// ordinary roles.
			if principal.RoleName == AdminRoleName {
				m.record("bypass")
				next.ServeHTTP(w, r)
				return
			}

			role, err := m.Checker.RoleByName(r.Context(), principal.RoleName)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					m.record("deny_unknown_role")
					m.warn("authorization denied: unknown role", principal, token)
					httpx.Problem(w, http.StatusForbidden, "Forbidden", "role not recognized")
					return
				}
				m.record("error")
				m.fail("authorization check failed", principal, token, err)
				httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
				return
			}
			if !role.IsActive {
				m.record("deny_inactive_role")
				m.warn("authorization denied: role inactive", principal, token)
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "role is not active")
				return
			}

			ok, err := m.Checker.HasGrant(r.Context(), role.ID, token.Resource, token.Action)
			if err != nil {
				m.record("error")
				m.fail("authorization check failed", principal, token, err)
				httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
				return
			}
			if !ok {
				m.record("deny_missing_grant")
				m.warn("authorization denied: missing grant", principal, token)
				httpx.ProblemExt(w, httpx.ProblemDetail{
					Title:      "Forbidden",
					Status:     http.StatusForbidden,
					Detail:     "missing required permission",
					Permission: token.String(),
				})
				return
			}

			m.record("allow")
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) record(outcome string) {
	if m.Metrics != nil {
		m.Metrics.RecordAuthzDecision(outcome)
	}
}

func (m Middleware) warn(msg string, principal *shared.Principal, token Token) {
	if m.Logger == nil {
		return
	}
	m.Logger.Warn(msg,
		slog.Int64("user_id", principal.ID),
		slog.String("role", principal.RoleName),
		slog.String("permission", token.String()))
}

func (m Middleware) fail(msg string, principal *shared.Principal, token Token, err error) {
	if m.Logger == nil {
		return
	}
	m.Logger.Error(msg,
		slog.Any("error", err),
		slog.Int64("user_id", principal.ID),
		slog.String("role", principal.RoleName),
		slog.String("permission", token.String()))
}
