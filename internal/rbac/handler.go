package rbac

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pathlight-hq/pathlight/internal/platform/httpx"
)

// Handler exposes the role administration endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	authz    Middleware
}

// NewHandler builds the Handler.
func NewHandler(logger *slog.Logger, service *Service, authz Middleware) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
		authz:    authz,
	}
}

// MountRoutes registers the role and permission endpoints. Paths are
// absolute so the route scanner sees the same patterns as the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(gr chi.Router) {
		gr.Use(h.authz.Require("roles", "manage"))
		gr.Get("/api/roles", h.handleListRoles)
		gr.Post("/api/roles", h.handleCreateRole)
		gr.Get("/api/roles/{id}", h.handleGetRole)
		gr.Put("/api/roles/{id}", h.handleUpdateRole)
		gr.Delete("/api/roles/{id}", h.handleDeleteRole)
		gr.Post("/api/roles/{id}/grants", h.handleGrant)
		gr.Delete("/api/roles/{id}/grants/{resource}/{action}", h.handleRevoke)
	})
	r.Group(func(gr chi.Router) {
		gr.Use(h.authz.Require("permissions", "manage"))
		gr.Get("/api/permissions", h.handleListPermissions)
	})
}

type roleResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	DisplayName string    `json:"display_name"`
	IsSystem    bool      `json:"is_system"`
	IsEditable  bool      `json:"is_editable"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type grantResponse struct {
	Resource string `json:"resource"`
	Action   string `json:"action"`
}

type roleDetailResponse struct {
	roleResponse
	Grants []grantResponse `json:"grants"`
}

type permissionResponse struct {
	ID          int64  `json:"id"`
	Resource    string `json:"resource"`
	Action      string `json:"action"`
	Description string `json:"description"`
}

type createRoleRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=64"`
	DisplayName string `json:"display_name" validate:"omitempty,max=128"`
}

type updateRoleRequest struct {
	DisplayName *string `json:"display_name" validate:"omitempty,max=128"`
	IsActive    *bool   `json:"is_active"`
}

type grantRequest struct {
	Resource string `json:"resource" validate:"required,max=64"`
	Action   string `json:"action" validate:"required,max=32"`
}

func (h *Handler) handleListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.respondError(w, "list roles", err)
		return
	}
	out := make([]roleResponse, 0, len(roles))
	for _, role := range roles {
		out = append(out, toRoleResponse(role))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": out})
}

func (h *Handler) handleCreateRole(w http.ResponseWriter, r *http.Request) {
	var req createRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	role, err := h.service.CreateRole(r.Context(), req.Name, req.DisplayName)
	if err != nil {
		h.respondError(w, "create role", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toRoleResponse(role))
}

func (h *Handler) handleGetRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roleID(w, r)
	if !ok {
		return
	}
	detail, err := h.service.GetRole(r.Context(), id)
	if err != nil {
		h.respondError(w, "get role", err)
		return
	}
	resp := roleDetailResponse{roleResponse: toRoleResponse(detail.Role)}
	resp.Grants = make([]grantResponse, 0, len(detail.Grants))
	for _, grant := range detail.Grants {
		resp.Grants = append(resp.Grants, grantResponse{Resource: grant.Resource, Action: grant.Action})
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) handleUpdateRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roleID(w, r)
	if !ok {
		return
	}
	var req updateRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	role, err := h.service.UpdateRole(r.Context(), id, req.DisplayName, req.IsActive)
	if err != nil {
		h.respondError(w, "update role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRoleResponse(role))
}

func (h *Handler) handleDeleteRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roleID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteRole(r.Context(), id); err != nil {
		h.respondError(w, "delete role", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) handleGrant(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roleID(w, r)
	if !ok {
		return
	}
	var req grantRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.GrantPermission(r.Context(), id, req.Resource, req.Action); err != nil {
		h.respondError(w, "grant permission", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roleID(w, r)
	if !ok {
		return
	}
	resource := chi.URLParam(r, "resource")
	action := chi.URLParam(r, "action")
	if err := h.service.RevokePermission(r.Context(), id, resource, action); err != nil {
		h.respondError(w, "revoke permission", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) handleListPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.service.ListPermissions(r.Context())
	if err != nil {
		h.respondError(w, "list permissions", err)
		return
	}
	out := make([]permissionResponse, 0, len(perms))
	for _, p := range perms {
		out = append(out, permissionResponse{
			ID:          p.ID,
			Resource:    p.Resource,
			Action:      p.Action,
			Description: p.Description,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": out})
}

func (h *Handler) roleID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid role ID")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, context string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "role not found")
	case errors.Is(err, ErrRoleExists):
		httpx.Problem(w, http.StatusConflict, "Conflict", "role name already in use")
	case errors.Is(err, ErrInvalidRoleName):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "role names are lowercase words, digits and underscores")
	case errors.Is(err, ErrUnknownPermission):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrSystemRole), errors.Is(err, ErrRoleNotEditable):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		h.logger.Error(context, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func toRoleResponse(role Role) roleResponse {
	return roleResponse{
		ID:          role.ID,
		Name:        role.Name,
		DisplayName: role.DisplayName,
		IsSystem:    role.IsSystem,
		IsEditable:  role.IsEditable,
		IsActive:    role.IsActive,
		CreatedAt:   role.CreatedAt,
		UpdatedAt:   role.UpdatedAt,
	}
}
