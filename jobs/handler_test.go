package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pathlight-hq/pathlight/internal/rbac"
	"github.com/pathlight-hq/pathlight/internal/shared"
)

type allowAll struct{}

func (allowAll) RoleByName(ctx context.Context, name string) (rbac.Role, error) {
	return rbac.Role{ID: 1, Name: name, IsActive: true}, nil
}

func (allowAll) HasGrant(ctx context.Context, roleID int64, resource, action string) (bool, error) {
	return true, nil
}

type denyAll struct{ allowAll }

func (denyAll) HasGrant(ctx context.Context, roleID int64, resource, action string) (bool, error) {
	return false, nil
}

func newJobsRouter(t *testing.T, checker rbac.GrantChecker) http.Handler {
	t.Helper()
	logger := testLogger()
	h := NewHandler(nil, nil, rbac.NewMiddleware(checker, logger, nil), logger)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			principal := &shared.Principal{ID: 7, RoleName: "program_staff"}
			next.ServeHTTP(w, req.WithContext(shared.ContextWithPrincipal(req.Context(), principal)))
		})
	})
	h.MountRoutes(r)
	return r
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

func TestQueueStatsWithoutInspector(t *testing.T) {
	h := newJobsRouter(t, allowAll{})

	rec := doJSON(t, h, http.MethodGet, "/api/jobs", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats queueStatsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	assert.Equal(t, QueueDefault, stats.Queue)
	assert.Zero(t, stats.Pending)
}

func TestJobsRoutesAreGated(t *testing.T) {
	h := newJobsRouter(t, denyAll{})

	rec := doJSON(t, h, http.MethodGet, "/api/jobs", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	var problem struct {
		Permission string `json:"permission"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&problem))
	assert.Equal(t, "jobs:list", problem.Permission)

	rec = doJSON(t, h, http.MethodPost, "/api/jobs/permission-sync", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&problem))
	assert.Equal(t, "jobs:create", problem.Permission)
}

func TestPermissionSyncWithoutQueue(t *testing.T) {
	h := newJobsRouter(t, allowAll{})

	rec := doJSON(t, h, http.MethodPost, "/api/jobs/permission-sync", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestReportBuildValidatesKind(t *testing.T) {
	h := newJobsRouter(t, allowAll{})

	rec := doJSON(t, h, http.MethodPost, "/api/jobs/reports", map[string]any{"kind": "weekly-totals"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// A valid kind passes validation and then fails on the missing queue.
	rec = doJSON(t, h, http.MethodPost, "/api/jobs/reports", map[string]any{"kind": "youth-summary"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
