package businesses

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

// Handler exposes the partner business endpoints.
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

// MountRoutes registers the partner business endpoints with absolute paths.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.authz.Require("businesses", "list")).Get("/api/businesses", h.handleList)
	r.With(h.authz.Require("businesses", "view")).Get("/api/businesses/{id}", h.handleGet)
	r.With(h.authz.Require("businesses", "create")).Post("/api/businesses", h.handleCreate)
	r.With(h.authz.Require("businesses", "edit")).Put("/api/businesses/{id}", h.handleUpdate)
	r.With(h.authz.Require("businesses", "delete")).Delete("/api/businesses/{id}", h.handleDelete)
}

type businessRequest struct {
	Name         string `json:"name" validate:"required,max=128"`
	Industry     string `json:"industry" validate:"max=64"`
	ContactEmail string `json:"contact_email" validate:"omitempty,email"`
	City         string `json:"city" validate:"max=64"`
	IsActive     *bool  `json:"is_active"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filters := shared.FiltersFromQuery(r)
	businesses, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.respondError(w, "list businesses", err)
		return
	}
	if businesses == nil {
		businesses = []Business{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"businesses": businesses,
		"pagination": shared.NewPagination(filters.Page, filters.Limit, total),
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.businessID(w, r)
	if !ok {
		return
	}
	business, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, "get business", err)
		return
	}
	httpx.JSON(w, http.StatusOK, business)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	business, ok := h.decodeBusiness(w, r)
	if !ok {
		return
	}
	created, err := h.service.Create(r.Context(), business)
	if err != nil {
		h.respondError(w, "create business", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.businessID(w, r)
	if !ok {
		return
	}
	business, ok := h.decodeBusiness(w, r)
	if !ok {
		return
	}
	updated, err := h.service.Update(r.Context(), id, business)
	if err != nil {
		h.respondError(w, "update business", err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.businessID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.respondError(w, "delete business", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) decodeBusiness(w http.ResponseWriter, r *http.Request) (Business, bool) {
	var req businessRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return Business{}, false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return Business{}, false
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return Business{
		Name:         req.Name,
		Industry:     req.Industry,
		ContactEmail: req.ContactEmail,
		City:         req.City,
		IsActive:     active,
	}, true
}

func (h *Handler) businessID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid business ID")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, context string, err error) {
	if errors.Is(err, shared.ErrNotFound) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "business not found")
		return
	}
	h.logger.Error(context, slog.Any("error", err))
	httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
}
