package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/pathlight-hq/pathlight/internal/jobs"
	"github.com/pathlight-hq/pathlight/internal/rbac"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// RouteSynchronizer reconciles derived route tokens with the stored catalog.
type RouteSynchronizer interface {
	Synchronize(ctx context.Context, routes []rbac.Route) (rbac.SyncResult, error)
}

// AdminRepairer restores the administrator role, the baseline catalog and
// the administrator's grants.
type AdminRepairer interface {
	Run(ctx context.Context) (rbac.BootstrapResult, error)
}

// PermissionSyncJob re-derives permission tokens from the route source tree
// and repairs catalog or administrator drift. Source may be nil; the run
// then skips the scan and still executes the bootstrap repair.
type PermissionSyncJob struct {
	Source    fs.FS
	Sync      RouteSynchronizer
	Bootstrap AdminRepairer
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	clock     func() time.Time
}

// NewPermissionSyncJob wires dependencies for the sync handler.
func NewPermissionSyncJob(source fs.FS, sync RouteSynchronizer, bootstrap AdminRepairer, logger *slog.Logger, metrics *jobmetrics.Metrics) *PermissionSyncJob {
	return &PermissionSyncJob{
		Source:    source,
		Sync:      sync,
		Bootstrap: bootstrap,
		Logger:    logger,
		Metrics:   metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes one reconciliation run.
func (j *PermissionSyncJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Sync == nil || j.Bootstrap == nil {
		return errors.New("permission sync: handler not configured")
	}
	var payload PermissionSyncPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Reason == "" {
		payload.Reason = "manual"
	}

	tracker := j.metrics().Track(TaskPermissionSync)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	start := j.now()
	logger := j.logger().With(slog.String("reason", payload.Reason))
	logger.Info("starting permission sync")

	var routes []rbac.Route
	if j.Source != nil {
		var err error
		routes, err = rbac.ScanRoutes(j.Source)
		if err != nil {
			resultErr = err
			logger.Error("scan route sources", slog.Any("error", err))
			return resultErr
		}
	}

	syncRes, err := j.Sync.Synchronize(ctx, routes)
	if err != nil {
		resultErr = err
		logger.Error("synchronize catalog", slog.Any("error", err))
		return resultErr
	}

	bootRes, err := j.Bootstrap.Run(ctx)
	if err != nil {
		resultErr = err
		logger.Error("repair administrator", slog.Any("error", err))
		return resultErr
	}

	permissions := syncRes.PermissionsAdded + bootRes.PermissionsEnsured
	grants := syncRes.GrantsAdded + bootRes.GrantsAdded
	j.metrics().AddDriftRepairs(permissions, grants)

	logger.Info("completed permission sync",
		slog.Int("routes", syncRes.RoutesSeen),
		slog.Int("permissions_added", permissions),
		slog.Int("grants_added", grants),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

func (j *PermissionSyncJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskPermissionSync))
	}
	return slog.Default().With(slog.String("job", TaskPermissionSync))
}

func (j *PermissionSyncJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *PermissionSyncJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
