package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/pathlight-hq/pathlight/internal/shared"
)

// PrincipalMiddleware resolves the session's user into a request principal.
// Requests without a usable session pass through anonymous; the
// authorization layer downstream turns that into a 401 where it matters.
func PrincipalMiddleware(service *Service, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := shared.SessionFromContext(r.Context())
			if sess == nil || sess.User() == "" {
				next.ServeHTTP(w, r)
				return
			}

			userID, err := strconv.ParseInt(sess.User(), 10, 64)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			user, err := service.UserByID(r.Context(), userID)
			if err != nil {
				if !errors.Is(err, shared.ErrNotFound) {
					logger.Warn("resolve session user", slog.Any("error", err), slog.Int64("user_id", userID))
				}
				next.ServeHTTP(w, r)
				return
			}
			if !user.IsActive {
				next.ServeHTTP(w, r)
				return
			}

			ctx := shared.ContextWithPrincipal(r.Context(), &shared.Principal{
				ID:       user.ID,
				Email:    user.Email,
				Name:     user.Name,
				RoleName: user.RoleName,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
