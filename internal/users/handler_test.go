package users

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pathlight-hq/pathlight/internal/rbac"
	"github.com/pathlight-hq/pathlight/internal/shared"
)

// principalInjector stands in for the session middleware.
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

type stubChecker struct {
	*stubRoles
	grants map[string]bool
}

func (s *stubChecker) HasGrant(ctx context.Context, roleID int64, resource, action string) (bool, error) {
	return s.grants[fmt.Sprintf("%d/%s:%s", roleID, resource, action)], nil
}

func newTestHandler(t *testing.T, repo *stubRepo, checker *stubChecker) (http.Handler, *principalInjector) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(repo, checker, nil, logger)
	authz := rbac.NewMiddleware(checker, logger, nil)
	h := NewHandler(logger, svc, authz)

	injector := &principalInjector{principal: &shared.Principal{ID: 99, RoleName: rbac.AdminRoleName}}
	r := chi.NewRouter()
	r.Use(injector.middleware)
	h.MountRoutes(r)
	return r, injector
}

func adminChecker() *stubChecker {
	return &stubChecker{stubRoles: knownRoles(), grants: map[string]bool{}}
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

func TestHandlerCreateUser(t *testing.T) {
	repo := newStubRepo()
	h, _ := newTestHandler(t, repo, adminChecker())

	rec := doJSON(t, h, http.MethodPost, "/api/users", map[string]any{
		"email":     "jordan@pathlight.test",
		"name":      "Jordan Reyes",
		"role_name": "program_staff",
		"password":  "orangebicycle",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "jordan@pathlight.test", resp["email"])
	assert.Equal(t, "program_staff", resp["role_name"])
	assert.Equal(t, true, resp["is_active"])

	_, leaked := resp["password_hash"]
	assert.False(t, leaked)
	_, leaked = resp["password"]
	assert.False(t, leaked)
}

func TestHandlerUserLifecycle(t *testing.T) {
	repo := newStubRepo()
	h, _ := newTestHandler(t, repo, adminChecker())

	rec := doJSON(t, h, http.MethodPost, "/api/users", map[string]any{
		"email":     "jordan@pathlight.test",
		"name":      "Jordan Reyes",
		"role_name": "program_staff",
		"password":  "orangebicycle",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))

	rec = doJSON(t, h, http.MethodGet, fmt.Sprintf("/api/users/%d", created.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodPut, fmt.Sprintf("/api/users/%d", created.ID), map[string]any{
		"email":     "jordan@pathlight.test",
		"name":      "Jordan R.",
		"role_name": "administrator",
		"is_active": false,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var updated struct {
		Name     string `json:"name"`
		RoleName string `json:"role_name"`
		IsActive bool   `json:"is_active"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&updated))
	assert.Equal(t, "Jordan R.", updated.Name)
	assert.Equal(t, "administrator", updated.RoleName)
	assert.False(t, updated.IsActive)

	rec = doJSON(t, h, http.MethodPut, fmt.Sprintf("/api/users/%d/password", created.ID),
		map[string]string{"password": "newpassphrase"})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, h, http.MethodDelete, fmt.Sprintf("/api/users/%d", created.ID), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, h, http.MethodGet, fmt.Sprintf("/api/users/%d", created.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerListUsers(t *testing.T) {
	repo := newStubRepo()
	repo.seed(User{Email: "a@pathlight.test", Name: "A", RoleName: "program_staff"})
	repo.seed(User{Email: "b@pathlight.test", Name: "B", RoleName: "program_staff"})
	h, _ := newTestHandler(t, repo, adminChecker())

	rec := doJSON(t, h, http.MethodGet, "/api/users", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Users      []userResponse    `json:"users"`
		Pagination shared.Pagination `json:"pagination"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Len(t, resp.Users, 2)
	assert.Equal(t, 2, resp.Pagination.Total)
	assert.Equal(t, 1, resp.Pagination.Page)
}

func TestHandlerValidation(t *testing.T) {
	h, _ := newTestHandler(t, newStubRepo(), adminChecker())

	cases := []struct {
		name string
		body map[string]any
	}{
		{"bad email", map[string]any{"email": "nope", "name": "X", "role_name": "program_staff", "password": "orangebicycle"}},
		{"short password", map[string]any{"email": "x@pathlight.test", "name": "X", "role_name": "program_staff", "password": "short"}},
		{"missing role", map[string]any{"email": "x@pathlight.test", "name": "X", "password": "orangebicycle"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, h, http.MethodPost, "/api/users", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestHandlerUnknownRoleRejected(t *testing.T) {
	h, _ := newTestHandler(t, newStubRepo(), adminChecker())

	rec := doJSON(t, h, http.MethodPost, "/api/users", map[string]any{
		"email":     "x@pathlight.test",
		"name":      "X",
		"role_name": "ghost",
		"password":  "orangebicycle",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "ghost")
}

func TestHandlerRequiresAuthentication(t *testing.T) {
	h, injector := newTestHandler(t, newStubRepo(), adminChecker())
	injector.principal = nil

	rec := doJSON(t, h, http.MethodGet, "/api/users", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandlerRequiresGrant(t *testing.T) {
	h, injector := newTestHandler(t, newStubRepo(), adminChecker())
	injector.principal = &shared.Principal{ID: 5, RoleName: "program_staff"}

	rec := doJSON(t, h, http.MethodGet, "/api/users", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	var problem struct {
		Permission string `json:"permission"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&problem))
	assert.Equal(t, "users:list", problem.Permission)
}

func TestHandlerGrantedStaffCanList(t *testing.T) {
	repo := newStubRepo()
	checker := adminChecker()
	checker.grants["2/users:list"] = true
	h, injector := newTestHandler(t, repo, checker)
	injector.principal = &shared.Principal{ID: 5, RoleName: "program_staff"}

	rec := doJSON(t, h, http.MethodGet, "/api/users", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandlerSelfDeleteConflict(t *testing.T) {
	repo := newStubRepo()
	admin := repo.seed(User{Email: "admin@pathlight.test", Name: "Admin", RoleName: "administrator"})
	h, injector := newTestHandler(t, repo, adminChecker())
	injector.principal = &shared.Principal{ID: admin.ID, RoleName: rbac.AdminRoleName}

	rec := doJSON(t, h, http.MethodDelete, fmt.Sprintf("/api/users/%d", admin.ID), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Len(t, repo.users, 1)
}
