package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/pathlight-hq/pathlight/internal/auth"
	"github.com/pathlight-hq/pathlight/internal/businesses"
	"github.com/pathlight-hq/pathlight/internal/makerspace"
	"github.com/pathlight-hq/pathlight/internal/mentors"
	"github.com/pathlight-hq/pathlight/internal/observability"
	"github.com/pathlight-hq/pathlight/internal/rbac"
	"github.com/pathlight-hq/pathlight/internal/reports"
	"github.com/pathlight-hq/pathlight/internal/shared"
	"github.com/pathlight-hq/pathlight/internal/users"
	"github.com/pathlight-hq/pathlight/internal/youth"
	"github.com/pathlight-hq/pathlight/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	Metrics        *observability.Metrics

	AuthService *auth.Service

	AuthHandler       *auth.Handler
	RBACHandler       *rbac.Handler
	UsersHandler      *users.Handler
	YouthHandler      *youth.Handler
	MentorsHandler    *mentors.Handler
	BusinessesHandler *businesses.Handler
	MakerspaceHandler *makerspace.Handler
	ReportsHandler    *reports.Handler
	JobsHandler       *jobs.Handler
}

// NewRouter constructs the chi router. Handlers register absolute paths so
// the routing table the synchronizer walks carries the same patterns the
// permission gates guard.
func NewRouter(params RouterParams) chi.Router {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)
	r.Use(auth.PrincipalMiddleware(params.AuthService, params.Logger))

	healthz := func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
	r.Get("/healthz", healthz)
	r.Get("/api/healthz", healthz)

	params.AuthHandler.MountRoutes(r)
	params.RBACHandler.MountRoutes(r)
	params.UsersHandler.MountRoutes(r)
	params.YouthHandler.MountRoutes(r)
	params.MentorsHandler.MountRoutes(r)
	params.BusinessesHandler.MountRoutes(r)
	params.MakerspaceHandler.MountRoutes(r)
	params.ReportsHandler.MountRoutes(r)
	if params.JobsHandler != nil {
		params.JobsHandler.MountRoutes(r)
	}

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
