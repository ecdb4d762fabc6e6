package reports

import (
	"bytes"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pathlight-hq/pathlight/internal/platform/httpx"
	"github.com/pathlight-hq/pathlight/internal/rbac"
)

// Handler streams the CSV exports and lists background runs.
type Handler struct {
	logger  *slog.Logger
	service *Service
	authz   rbac.Middleware
	csvPool sync.Pool
	now     func() time.Time
}

// NewHandler builds the Handler.
func NewHandler(logger *slog.Logger, service *Service, authz rbac.Middleware) *Handler {
	h := &Handler{
		logger:  logger,
		service: service,
		authz:   authz,
		now:     time.Now,
	}
	h.csvPool.New = func() interface{} { return new(bytes.Buffer) }
	return h
}

// MountRoutes registers the report endpoints with absolute paths. Every
// report surface checks reports:view.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(gr chi.Router) {
		gr.Use(h.authz.Require("reports", "view"))
		gr.Get("/api/reports/youth-summary", h.handleExport(KindYouthSummary))
		gr.Get("/api/reports/mentor-roster", h.handleExport(KindMentorRoster))
		gr.Get("/api/reports/business-directory", h.handleExport(KindBusinessDirectory))
		gr.Get("/api/reports/runs", h.handleListRuns)
	})
}

func (h *Handler) handleExport(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buf := h.csvPool.Get().(*bytes.Buffer)
		buf.Reset()
		defer func() {
			buf.Reset()
			h.csvPool.Put(buf)
		}()

		if _, err := h.service.WriteReport(r.Context(), kind, buf); err != nil {
			h.logger.Error("build report", slog.Any("error", err), slog.String("kind", kind))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
			return
		}

		filename := kind + "-" + h.now().Format("2006-01-02") + ".csv"
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
		_, _ = w.Write(buf.Bytes())
	}
}

func (h *Handler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := h.service.ListRuns(r.Context(), limit)
	if err != nil {
		h.logger.Error("list report runs", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	if runs == nil {
		runs = []Run{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"runs": runs})
}
