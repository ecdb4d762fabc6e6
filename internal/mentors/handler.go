package mentors

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

// Handler exposes the mentor and mentor-business endpoints. Both surfaces
// check mentors permissions.
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

// MountRoutes registers the mentor endpoints with absolute paths.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.authz.Require("mentors", "list")).Get("/api/mentors", h.handleList)
	r.With(h.authz.Require("mentors", "view")).Get("/api/mentors/{id}", h.handleGet)
	r.With(h.authz.Require("mentors", "create")).Post("/api/mentors", h.handleCreate)
	r.With(h.authz.Require("mentors", "edit")).Put("/api/mentors/{id}", h.handleUpdate)
	r.With(h.authz.Require("mentors", "delete")).Delete("/api/mentors/{id}", h.handleDelete)

	r.With(h.authz.Require("mentors", "list")).Get("/api/mentor-businesses", h.handleListBusinesses)
	r.With(h.authz.Require("mentors", "view")).Get("/api/mentor-businesses/{id}", h.handleGetBusiness)
	r.With(h.authz.Require("mentors", "create")).Post("/api/mentor-businesses", h.handleAddBusiness)
	r.With(h.authz.Require("mentors", "delete")).Delete("/api/mentor-businesses/{id}", h.handleDeleteBusiness)
}

type businessForm struct {
	Name        string `json:"name" validate:"required,max=128"`
	Industry    string `json:"industry" validate:"max=64"`
	FoundedYear int    `json:"founded_year" validate:"omitempty,min=1900,max=2100"`
}

type mentorRequest struct {
	Name       string         `json:"name" validate:"required,max=128"`
	Email      string         `json:"email" validate:"required,email"`
	Phone      string         `json:"phone" validate:"max=32"`
	Expertise  string         `json:"expertise" validate:"max=128"`
	IsActive   *bool          `json:"is_active"`
	Businesses []businessForm `json:"businesses" validate:"omitempty,max=10,dive"`
}

type addBusinessRequest struct {
	MentorID int64 `json:"mentor_id" validate:"required,min=1"`
	businessForm
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filters := shared.FiltersFromQuery(r)
	mentors, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.respondError(w, "list mentors", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"mentors":    mentors,
		"pagination": shared.NewPagination(filters.Page, filters.Limit, total),
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	mentor, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, "get mentor", err)
		return
	}
	httpx.JSON(w, http.StatusOK, mentor)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req mentorRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	businesses := make([]Business, 0, len(req.Businesses))
	for _, b := range req.Businesses {
		businesses = append(businesses, Business{
			Name:        b.Name,
			Industry:    b.Industry,
			FoundedYear: b.FoundedYear,
		})
	}
	mentor, err := h.service.Create(r.Context(), Mentor{
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		Expertise: req.Expertise,
		IsActive:  active,
	}, businesses)
	if err != nil {
		h.respondError(w, "create mentor", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, mentor)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req mentorRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	mentor, err := h.service.Update(r.Context(), id, Mentor{
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		Expertise: req.Expertise,
		IsActive:  active,
	})
	if err != nil {
		h.respondError(w, "update mentor", err)
		return
	}
	httpx.JSON(w, http.StatusOK, mentor)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.respondError(w, "delete mentor", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) handleListBusinesses(w http.ResponseWriter, r *http.Request) {
	var mentorID *int64
	if raw := r.URL.Query().Get("mentor_id"); raw != "" {
		if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil {
			mentorID = &parsed
		}
	}
	businesses, err := h.service.ListBusinesses(r.Context(), mentorID)
	if err != nil {
		h.respondError(w, "list mentor businesses", err)
		return
	}
	if businesses == nil {
		businesses = []Business{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"businesses": businesses})
}

func (h *Handler) handleGetBusiness(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	business, err := h.service.GetBusiness(r.Context(), id)
	if err != nil {
		h.respondError(w, "get mentor business", err)
		return
	}
	httpx.JSON(w, http.StatusOK, business)
}

func (h *Handler) handleAddBusiness(w http.ResponseWriter, r *http.Request) {
	var req addBusinessRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	business, err := h.service.AddBusiness(r.Context(), Business{
		MentorID:    req.MentorID,
		Name:        req.Name,
		Industry:    req.Industry,
		FoundedYear: req.FoundedYear,
	})
	if err != nil {
		h.respondError(w, "add mentor business", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, business)
}

func (h *Handler) handleDeleteBusiness(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteBusiness(r.Context(), id); err != nil {
		h.respondError(w, "delete mentor business", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid ID")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, context string, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "record not found")
	case errors.Is(err, ErrEmailTaken):
		httpx.Problem(w, http.StatusConflict, "Conflict", "email already in use")
	default:
		h.logger.Error(context, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
