package rbac

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pathlight-hq/pathlight/internal/shared"
)

// principalInjector stands in for the session middleware: whatever it holds
// becomes the request principal.
type principalInjector struct {
	principal *shared.Principal
}

func (p *principalInjector) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p.principal != nil {
			r = r.WithContext(shared.ContextWithPrincipal(r.Context(), p.principal))
		}
		next.ServeHTTP(w, r)
	})
}

func newTestHandler(t *testing.T, store *mockStore) (http.Handler, *principalInjector) {
	t.Helper()
	svc := NewService(store, nil, nil, newTestLogger())
	authz := NewMiddleware(store, newTestLogger(), nil)
	h := NewHandler(newTestLogger(), svc, authz)

	injector := &principalInjector{principal: &shared.Principal{ID: 1, RoleName: AdminRoleName}}
	r := chi.NewRouter()
	r.Use(injector.middleware)
	h.MountRoutes(r)
	return r, injector
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerCreateRole(t *testing.T) {
	h, _ := newTestHandler(t, newMockStore())

	rec := doJSON(t, h, http.MethodPost, "/api/roles", map[string]string{"name": "program_staff"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		ID          int64  `json:"id"`
		Name        string `json:"name"`
		DisplayName string `json:"display_name"`
		IsEditable  bool   `json:"is_editable"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "program_staff", resp.Name)
	assert.Equal(t, "Program Staff", resp.DisplayName)
	assert.True(t, resp.IsEditable)
	assert.NotZero(t, resp.ID)
}

func TestHandlerRoleLifecycle(t *testing.T) {
	store := newMockStore()
	_, err := store.InsertPermission(context.Background(), Permission{Resource: "mentors", Action: "list"})
	require.NoError(t, err)

	h, _ := newTestHandler(t, store)

	rec := doJSON(t, h, http.MethodPost, "/api/roles", map[string]string{"name": "mentee"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))

	rec = doJSON(t, h, http.MethodPost, fmt.Sprintf("/api/roles/%d/grants", created.ID),
		map[string]string{"resource": "mentors", "action": "list"})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, h, http.MethodGet, fmt.Sprintf("/api/roles/%d", created.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var detail struct {
		Name   string `json:"name"`
		Grants []struct {
			Resource string `json:"resource"`
			Action   string `json:"action"`
		} `json:"grants"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&detail))
	assert.Equal(t, "mentee", detail.Name)
	require.Len(t, detail.Grants, 1)
	assert.Equal(t, "mentors", detail.Grants[0].Resource)

	rec = doJSON(t, h, http.MethodPut, fmt.Sprintf("/api/roles/%d", created.ID),
		map[string]any{"display_name": "Cohort Mentee", "is_active": false})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodDelete,
		fmt.Sprintf("/api/roles/%d/grants/mentors/list", created.ID), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, h, http.MethodDelete, fmt.Sprintf("/api/roles/%d", created.ID), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, h, http.MethodGet, fmt.Sprintf("/api/roles/%d", created.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerListRoles(t *testing.T) {
	store := newMockStore()
	store.seedRole(adminRole())
	store.seedRole(Role{Name: "mentee", DisplayName: "Mentee", IsEditable: true, IsActive: true})

	h, _ := newTestHandler(t, store)

	rec := doJSON(t, h, http.MethodGet, "/api/roles", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Roles []struct {
			Name string `json:"name"`
		} `json:"roles"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Len(t, resp.Roles, 2)
}

func TestHandlerListPermissions(t *testing.T) {
	store := newMockStore()
	_, err := store.InsertPermission(context.Background(), Permission{Resource: "mentors", Action: "list", Description: "list mentors"})
	require.NoError(t, err)

	h, _ := newTestHandler(t, store)

	rec := doJSON(t, h, http.MethodGet, "/api/permissions", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Permissions []struct {
			Resource    string `json:"resource"`
			Action      string `json:"action"`
			Description string `json:"description"`
		} `json:"permissions"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Permissions, 1)
	assert.Equal(t, "list mentors", resp.Permissions[0].Description)
}

func TestHandlerRequiresAuthentication(t *testing.T) {
	h, injector := newTestHandler(t, newMockStore())
	injector.principal = nil

	rec := doJSON(t, h, http.MethodGet, "/api/roles", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandlerRequiresManagePermission(t *testing.T) {
	store := newMockStore()
	store.seedRole(Role{Name: "mentee", DisplayName: "Mentee", IsEditable: true, IsActive: true})

	h, injector := newTestHandler(t, store)
	injector.principal = &shared.Principal{ID: 7, RoleName: "mentee"}

	rec := doJSON(t, h, http.MethodGet, "/api/roles", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	var problem struct {
		Permission string `json:"permission"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&problem))
	assert.Equal(t, "roles:manage", problem.Permission)
}

func TestHandlerAllowsGrantedManager(t *testing.T) {
	store := newMockStore()
	role := store.seedRole(Role{Name: "ops", DisplayName: "Ops", IsEditable: true, IsActive: true})
	_, err := store.Grant(context.Background(), role.ID, "roles", "manage")
	require.NoError(t, err)

	h, injector := newTestHandler(t, store)
	injector.principal = &shared.Principal{ID: 7, RoleName: "ops"}

	rec := doJSON(t, h, http.MethodGet, "/api/roles", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandlerValidation(t *testing.T) {
	store := newMockStore()
	store.seedRole(adminRole())
	h, _ := newTestHandler(t, store)

	t.Run("malformed json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/roles", bytes.NewBufferString("{"))
		req = req.WithContext(shared.ContextWithPrincipal(req.Context(), &shared.Principal{ID: 1, RoleName: AdminRoleName}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing name", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/api/roles", map[string]string{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid name", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/api/roles", map[string]string{"name": "Not Valid"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("duplicate name", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/api/roles", map[string]string{"name": "mentee"})
		require.Equal(t, http.StatusCreated, rec.Code)
		rec = doJSON(t, h, http.MethodPost, "/api/roles", map[string]string{"name": "mentee"})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("bad role id", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodGet, "/api/roles/abc", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown grant token", func(t *testing.T) {
		rec := doJSON(t, h, http.MethodPost, "/api/roles", map[string]string{"name": "grantee"})
		require.Equal(t, http.StatusCreated, rec.Code)
		var created struct {
			ID int64 `json:"id"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))

		rec = doJSON(t, h, http.MethodPost, fmt.Sprintf("/api/roles/%d/grants", created.ID),
			map[string]string{"resource": "mentors", "action": "fly"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandlerProtectsSystemRole(t *testing.T) {
	store := newMockStore()
	admin := store.seedRole(adminRole())
	h, _ := newTestHandler(t, store)

	rec := doJSON(t, h, http.MethodDelete, fmt.Sprintf("/api/roles/%d", admin.ID), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, h, http.MethodPut, fmt.Sprintf("/api/roles/%d", admin.ID),
		map[string]any{"display_name": "Root"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}
