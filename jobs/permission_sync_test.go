package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"testing/fstest"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pathlight-hq/pathlight/internal/rbac"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubSynchronizer struct {
	routes []rbac.Route
	result rbac.SyncResult
	err    error
	calls  int
}

func (s *stubSynchronizer) Synchronize(ctx context.Context, routes []rbac.Route) (rbac.SyncResult, error) {
	s.calls++
	s.routes = routes
	return s.result, s.err
}

type stubRepairer struct {
	result rbac.BootstrapResult
	err    error
	calls  int
}

func (s *stubRepairer) Run(ctx context.Context) (rbac.BootstrapResult, error) {
	s.calls++
	return s.result, s.err
}

func routeSource() fstest.MapFS {
	return fstest.MapFS{
		"youth/handler.go": &fstest.MapFile{Data: []byte(`package youth

func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.authz.Require("youth_profiles", "list")).Get("/api/youth-profiles", h.handleList)
	r.With(h.authz.Require("youth_profiles", "create")).Post("/api/youth-profiles", h.handleCreate)
}
`)},
	}
}

func TestPermissionSyncScansAndRepairs(t *testing.T) {
	sync := &stubSynchronizer{result: rbac.SyncResult{RoutesSeen: 2, TokensDerived: 2, PermissionsAdded: 1, GrantsAdded: 1}}
	repair := &stubRepairer{result: rbac.BootstrapResult{GrantsAdded: 2}}
	job := NewPermissionSyncJob(routeSource(), sync, repair, testLogger(), nil)

	task, err := NewPermissionSyncTask("cron")
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	assert.Equal(t, 1, sync.calls)
	assert.Equal(t, 1, repair.calls)
	require.Len(t, sync.routes, 2)
	assert.Equal(t, "GET", sync.routes[0].Method)
	assert.Equal(t, "/api/youth-profiles", sync.routes[0].Path)
	assert.Equal(t, "POST", sync.routes[1].Method)
}

func TestPermissionSyncWithoutSource(t *testing.T) {
	sync := &stubSynchronizer{}
	repair := &stubRepairer{}
	job := NewPermissionSyncJob(nil, sync, repair, testLogger(), nil)

	task, err := NewPermissionSyncTask("")
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	assert.Equal(t, 1, sync.calls)
	assert.Empty(t, sync.routes)
	assert.Equal(t, 1, repair.calls)
}

func TestPermissionSyncFailureSkipsRepair(t *testing.T) {
	sync := &stubSynchronizer{err: errors.New("catalog unavailable")}
	repair := &stubRepairer{}
	job := NewPermissionSyncJob(nil, sync, repair, testLogger(), nil)

	task, err := NewPermissionSyncTask("cron")
	require.NoError(t, err)

	err = job.Handle(context.Background(), task)
	require.ErrorContains(t, err, "catalog unavailable")
	assert.Zero(t, repair.calls)
}

func TestPermissionSyncBadPayload(t *testing.T) {
	job := NewPermissionSyncJob(nil, &stubSynchronizer{}, &stubRepairer{}, testLogger(), nil)

	task := asynq.NewTask(TaskPermissionSync, []byte("{"))
	assert.ErrorIs(t, job.Handle(context.Background(), task), asynq.SkipRetry)
}
