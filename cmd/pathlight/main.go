package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/pathlight-hq/pathlight/cmd/pathlight/cli"
	"github.com/pathlight-hq/pathlight/internal/app"
	"github.com/pathlight-hq/pathlight/internal/auth"
	"github.com/pathlight-hq/pathlight/internal/businesses"
	"github.com/pathlight-hq/pathlight/internal/makerspace"
	"github.com/pathlight-hq/pathlight/internal/mentors"
	"github.com/pathlight-hq/pathlight/internal/observability"
	"github.com/pathlight-hq/pathlight/internal/platform/db"
	"github.com/pathlight-hq/pathlight/internal/rbac"
	"github.com/pathlight-hq/pathlight/internal/reports"
	"github.com/pathlight-hq/pathlight/internal/shared"
	"github.com/pathlight-hq/pathlight/internal/users"
	"github.com/pathlight-hq/pathlight/internal/youth"
	"github.com/pathlight-hq/pathlight/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	if args := os.Args[1:]; len(args) > 0 && args[0] == "jobs" {
		os.Exit(runJobsCLI(ctx, cfg.RedisAddr, args[1:]))
	}

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "pathlight_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	auditLogger := shared.NewAuditLogger(pool)
	metrics := observability.NewMetrics()

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager)

	rbacRepo := rbac.NewRepository(pool)
	var checker rbac.GrantChecker = rbacRepo
	var invalidator rbac.GrantInvalidator
	if cfg.PermissionCacheTTL > 0 {
		cache := rbac.NewGrantCache(redisClient, rbacRepo, cfg.PermissionCacheTTL, logger)
		checker = cache
		invalidator = cache
	}
	authz := rbac.NewMiddleware(checker, logger, metrics)
	rbacService := rbac.NewService(rbacRepo, invalidator, auditLogger, logger)
	rbacHandler := rbac.NewHandler(logger, rbacService, authz)

	usersRepo := users.NewRepository(pool)
	usersService := users.NewService(usersRepo, checker, auditLogger, logger)
	usersHandler := users.NewHandler(logger, usersService, authz)

	youthHandler := youth.NewHandler(logger, youth.NewService(youth.NewRepository(pool)), authz)
	mentorsHandler := mentors.NewHandler(logger, mentors.NewService(mentors.NewRepository(pool)), authz)
	businessesHandler := businesses.NewHandler(logger, businesses.NewService(businesses.NewRepository(pool)), authz)
	makerspaceHandler := makerspace.NewHandler(logger, makerspace.NewService(makerspace.NewRepository(pool)), authz)

	reportsRepo := reports.NewRepository(pool)
	reportsService := reports.NewService(reportsRepo, logger)
	reportsHandler := reports.NewHandler(logger, reportsService, authz)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, jobsClient, authz, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		SessionManager:    sessionManager,
		CSRFManager:       csrfManager,
		Metrics:           metrics,
		AuthService:       authService,
		AuthHandler:       authHandler,
		RBACHandler:       rbacHandler,
		UsersHandler:      usersHandler,
		YouthHandler:      youthHandler,
		MentorsHandler:    mentorsHandler,
		BusinessesHandler: businessesHandler,
		MakerspaceHandler: makerspaceHandler,
		ReportsHandler:    reportsHandler,
		JobsHandler:       jobsHandler,
	})

	// Reconcile the catalog against the live routing table before serving.
	// A failed sync means requests could reach routes whose permissions do
	// not exist yet, so startup aborts.
	routes, err := rbac.RoutesFromRouter(router)
	if err != nil {
		logger.Error("walk routing table", slog.Any("error", err))
		os.Exit(1)
	}
	synchronizer := rbac.NewSynchronizer(rbacRepo, invalidator, logger)
	if _, err := synchronizer.Synchronize(ctx, routes); err != nil {
		logger.Error("permission sync", slog.Any("error", err))
		os.Exit(1)
	}
	bootstrapper := rbac.NewBootstrapper(rbacRepo, invalidator, logger)
	if _, err := bootstrapper.Run(ctx); err != nil {
		logger.Error("administrator bootstrap", slog.Any("error", err))
		os.Exit(1)
	}

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

func runJobsCLI(ctx context.Context, redisAddr string, args []string) int {
	jobsCLI, err := cli.NewJobsCLI(redisAddr)
	if err != nil {
		slog.Default().Error("init jobs cli", slog.Any("error", err))
		return 1
	}
	defer func() {
		_ = jobsCLI.Close()
	}()
	return jobsCLI.Run(ctx, cli.RunOptions{Args: args, Stdout: os.Stdout, Stderr: os.Stderr})
}
