package makerspace

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pathlight-hq/pathlight/internal/platform/httpx"
	"github.com/pathlight-hq/pathlight/internal/rbac"
	"github.com/pathlight-hq/pathlight/internal/shared"
)

// Handler exposes the makerspace project endpoints under the makerspace
// permission resource.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	authz    rbac.Middleware
}

// NewHandler builds the Handler.
func NewHandler(logger *slog.Logger, service *Service, authz rbac.Middleware) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
		authz:    authz,
	}
}

// MountRoutes registers the project endpoints with absolute paths.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.authz.Require("makerspace", "list")).Get("/api/makerspace-projects", h.handleList)
	r.With(h.authz.Require("makerspace", "view")).Get("/api/makerspace-projects/{id}", h.handleGet)
	r.With(h.authz.Require("makerspace", "create")).Post("/api/makerspace-projects", h.handleCreate)
	r.With(h.authz.Require("makerspace", "edit")).Put("/api/makerspace-projects/{id}", h.handleUpdate)
	r.With(h.authz.Require("makerspace", "delete")).Delete("/api/makerspace-projects/{id}", h.handleDelete)
}

type projectRequest struct {
	Title       string `json:"title" validate:"required,max=128"`
	Description string `json:"description" validate:"max=2048"`
	Status      string `json:"status" validate:"omitempty,oneof=planned active complete"`
	YouthID     *int64 `json:"youth_id" validate:"omitempty,min=1"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filters := shared.FiltersFromQuery(r)
	filters.Status = r.URL.Query().Get("status")

	projects, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.respondError(w, "list makerspace projects", err)
		return
	}
	if projects == nil {
		projects = []Project{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"projects":   projects,
		"pagination": shared.NewPagination(filters.Page, filters.Limit, total),
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.projectID(w, r)
	if !ok {
		return
	}
	project, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, "get makerspace project", err)
		return
	}
	httpx.JSON(w, http.StatusOK, project)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	project, ok := h.decodeProject(w, r)
	if !ok {
		return
	}
	created, err := h.service.Create(r.Context(), project)
	if err != nil {
		h.respondError(w, "create makerspace project", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.projectID(w, r)
	if !ok {
		return
	}
	project, ok := h.decodeProject(w, r)
	if !ok {
		return
	}
	updated, err := h.service.Update(r.Context(), id, project)
	if err != nil {
		h.respondError(w, "update makerspace project", err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.projectID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.respondError(w, "delete makerspace project", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) decodeProject(w http.ResponseWriter, r *http.Request) (Project, bool) {
	var req projectRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return Project{}, false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return Project{}, false
	}
	return Project{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		YouthID:     req.YouthID,
	}, true
}

func (h *Handler) projectID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid project ID")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, context string, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "project not found")
	case errors.Is(err, ErrBadStatus), errors.Is(err, ErrBadTransition):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		h.logger.Error(context, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
