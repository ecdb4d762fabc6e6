package main

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/pathlight-hq/pathlight/internal/app"
	"github.com/pathlight-hq/pathlight/internal/platform/cache"
	"github.com/pathlight-hq/pathlight/internal/platform/db"
	"github.com/pathlight-hq/pathlight/internal/rbac"
	"github.com/pathlight-hq/pathlight/internal/reports"
	"github.com/pathlight-hq/pathlight/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	// Without Redis the worker has no queue, so unlike the web process it
	// refuses to start.
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	rbacRepo := rbac.NewRepository(pool)
	var invalidator rbac.GrantInvalidator
	if cfg.PermissionCacheTTL > 0 {
		invalidator = rbac.NewGrantCache(redisClient, rbacRepo, cfg.PermissionCacheTTL, logger)
	}
	synchronizer := rbac.NewSynchronizer(rbacRepo, invalidator, logger)
	bootstrapper := rbac.NewBootstrapper(rbacRepo, invalidator, logger)

	var source fs.FS
	if info, err := os.Stat(cfg.RouteScanDir); err == nil && info.IsDir() {
		source = os.DirFS(cfg.RouteScanDir)
	} else {
		logger.Warn("route scan dir missing, sync runs without the scan", slog.String("dir", cfg.RouteScanDir))
	}
	syncJob := jobs.NewPermissionSyncJob(source, synchronizer, bootstrapper, logger, nil)

	reportsRepo := reports.NewRepository(pool)
	reportsService := reports.NewService(reportsRepo, logger)
	reportJob := jobs.NewReportBuildJob(reportsService, logger, nil)

	syncTask, err := jobs.NewPermissionSyncTask("cron")
	if err != nil {
		logger.Error("build sync task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskPermissionSync, Handler: syncJob.Handle},
			{Type: jobs.TaskReportBuild, Handler: reportJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "30 2 * * *", Task: syncTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
