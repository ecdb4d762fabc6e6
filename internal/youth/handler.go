package youth

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pathlight-hq/pathlight/internal/platform/httpx"
	"github.com/pathlight-hq/pathlight/internal/rbac"
	"github.com/pathlight-hq/pathlight/internal/shared"
)

// Handler exposes the youth profile endpoints.
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

// MountRoutes registers the youth profile endpoints with absolute paths.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.authz.Require("youth_profiles", "list")).Get("/api/youth-profiles", h.handleList)
	r.With(h.authz.Require("youth_profiles", "view")).Get("/api/youth-profiles/{id}", h.handleGet)
	r.With(h.authz.Require("youth_profiles", "create")).Post("/api/youth-profiles", h.handleCreate)
	r.With(h.authz.Require("youth_profiles", "edit")).Put("/api/youth-profiles/{id}", h.handleUpdate)
	r.With(h.authz.Require("youth_profiles", "delete")).Delete("/api/youth-profiles/{id}", h.handleDelete)
}

type profileRequest struct {
	Name      string `json:"name" validate:"required,max=128"`
	BirthDate string `json:"birth_date" validate:"required,datetime=2006-01-02"`
	School    string `json:"school" validate:"max=128"`
	Cohort    string `json:"cohort" validate:"required,max=32"`
	IsActive  *bool  `json:"is_active"`
}

type profileResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	BirthDate string    `json:"birth_date"`
	School    string    `json:"school"`
	Cohort    string    `json:"cohort"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filters := shared.FiltersFromQuery(r)
	filters.Cohort = r.URL.Query().Get("cohort")

	profiles, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.respondError(w, "list youth profiles", err)
		return
	}
	out := make([]profileResponse, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, toProfileResponse(p))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"youth_profiles": out,
		"pagination":     shared.NewPagination(filters.Page, filters.Limit, total),
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.profileID(w, r)
	if !ok {
		return
	}
	profile, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, "get youth profile", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toProfileResponse(profile))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	profile, ok := h.decodeProfile(w, r)
	if !ok {
		return
	}
	created, err := h.service.Create(r.Context(), profile)
	if err != nil {
		h.respondError(w, "create youth profile", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toProfileResponse(created))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.profileID(w, r)
	if !ok {
		return
	}
	profile, ok := h.decodeProfile(w, r)
	if !ok {
		return
	}
	updated, err := h.service.Update(r.Context(), id, profile)
	if err != nil {
		h.respondError(w, "update youth profile", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toProfileResponse(updated))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.profileID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.respondError(w, "delete youth profile", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) decodeProfile(w http.ResponseWriter, r *http.Request) (Profile, bool) {
	var req profileRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return Profile{}, false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return Profile{}, false
	}
	birthDate, err := time.Parse("2006-01-02", req.BirthDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "birth_date must be YYYY-MM-DD")
		return Profile{}, false
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return Profile{
		Name:      req.Name,
		BirthDate: birthDate,
		School:    req.School,
		Cohort:    req.Cohort,
		IsActive:  active,
	}, true
}

func (h *Handler) profileID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid profile ID")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, context string, err error) {
	if errors.Is(err, shared.ErrNotFound) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "youth profile not found")
		return
	}
	h.logger.Error(context, slog.Any("error", err))
	httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
}

func toProfileResponse(p Profile) profileResponse {
	return profileResponse{
		ID:        p.ID,
		Name:      p.Name,
		BirthDate: p.BirthDate.Format("2006-01-02"),
		School:    p.School,
		Cohort:    p.Cohort,
		IsActive:  p.IsActive,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}
