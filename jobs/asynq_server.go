package jobs

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	"github.com/pathlight-hq/pathlight/internal/platform/httpx"
	"github.com/pathlight-hq/pathlight/internal/rbac"
	"github.com/pathlight-hq/pathlight/internal/reports"
	"github.com/pathlight-hq/pathlight/internal/shared"
)

// Worker wraps the Asynq server and optional scheduler.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	scheduler *asynq.Scheduler
	logger    *slog.Logger
}

// TaskHandler allows injecting custom Asynq handlers during worker setup.
type TaskHandler struct {
	Type    string
	Handler asynq.HandlerFunc
}

// CronRegistration wires a cron expression to a prepared task.
type CronRegistration struct {
	Spec    string
	Task    *asynq.Task
	Options []asynq.Option
}

// WorkerConfig collects dependencies required to bootstrap the worker.
type WorkerConfig struct {
	RedisOpts asynq.RedisClientOpt
	Logger    *slog.Logger
	Handlers  []TaskHandler
	Cron      []CronRegistration
}

// NewWorker constructs a Worker instance.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	srv := asynq.NewServer(cfg.RedisOpts, asynq.Config{
		Concurrency: 5,
		Queues: map[string]int{
			QueueDefault: 1,
		},
	})
	mux := asynq.NewServeMux()
	for _, h := range cfg.Handlers {
		if h.Type == "" || h.Handler == nil {
			continue
		}
		mux.HandleFunc(h.Type, h.Handler)
	}

	var scheduler *asynq.Scheduler
	if len(cfg.Cron) > 0 {
		scheduler = asynq.NewScheduler(cfg.RedisOpts, &asynq.SchedulerOpts{Location: time.UTC})
		for _, entry := range cfg.Cron {
			if entry.Spec == "" || entry.Task == nil {
				continue
			}
			if _, err := scheduler.Register(entry.Spec, entry.Task, entry.Options...); err != nil {
				return nil, err
			}
		}
	}

	return &Worker{server: srv, mux: mux, scheduler: scheduler, logger: cfg.Logger}, nil
}

// Run starts processing jobs until context cancellation.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil {
		return errors.New("worker: not configured")
	}
	if w.scheduler != nil {
		if err := w.scheduler.Start(); err != nil {
			return err
		}
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- w.server.Run(w.mux)
	}()
	select {
	case <-ctx.Done():
		if w.scheduler != nil {
			w.scheduler.Shutdown()
		}
		w.server.Shutdown()
		return ctx.Err()
	case err := <-errCh:
		if w.scheduler != nil {
			w.scheduler.Shutdown()
		}
		return err
	}
}

// Client submits jobs to the queue.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) (*Client, error) {
	client := asynq.NewClient(redisOpts)
	return &Client{client: client}, nil
}

// EnqueuePermissionSync enqueues a catalog reconciliation run.
func (c *Client) EnqueuePermissionSync(ctx context.Context, reason string) (*asynq.TaskInfo, error) {
	task, err := NewPermissionSyncTask(reason)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault))
}

// EnqueueReportBuild enqueues a background report build.
func (c *Client) EnqueueReportBuild(ctx context.Context, kind string, requestedBy int64) (*asynq.TaskInfo, error) {
	task, err := NewReportBuildTask(kind, requestedBy)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault))
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}

// Handler exposes HTTP endpoints for queue visibility and on-demand runs.
type Handler struct {
	inspector *asynq.Inspector
	client    *Client
	authz     rbac.Middleware
	logger    *slog.Logger
}

// NewHandler constructs an HTTP handler for the jobs endpoints. inspector
// and client may be nil when Redis is not reachable; the endpoints then
// degrade instead of panicking.
func NewHandler(inspector *asynq.Inspector, client *Client, authz rbac.Middleware, logger *slog.Logger) *Handler {
	return &Handler{inspector: inspector, client: client, authz: authz, logger: logger}
}

// MountRoutes attaches the job routes with absolute paths.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.authz.Require("jobs", "list")).Get("/api/jobs", h.handleQueueStats)
	r.With(h.authz.Require("jobs", "create")).Post("/api/jobs/permission-sync", h.handlePermissionSync)
	r.With(h.authz.Require("jobs", "create")).Post("/api/jobs/reports", h.handleReportBuild)
}

type queueStatsResponse struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
	Archived  int    `json:"archived"`
}

func (h *Handler) handleQueueStats(w http.ResponseWriter, r *http.Request) {
	if h.inspector == nil {
		httpx.JSON(w, http.StatusOK, queueStatsResponse{Queue: QueueDefault})
		return
	}
	info, err := h.inspector.GetQueueInfo(QueueDefault)
	if err != nil {
		h.logger.Warn("inspect queue", slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Queue Unavailable", "could not inspect the job queue")
		return
	}
	stats := queueStatsResponse{Queue: QueueDefault}
	if info != nil {
		stats.Queue = info.Queue
		stats.Pending = int(info.Pending)
		stats.Active = int(info.Active)
		stats.Scheduled = int(info.Scheduled)
		stats.Retry = int(info.Retry)
		stats.Archived = int(info.Archived)
	}
	httpx.JSON(w, http.StatusOK, stats)
}

type enqueueResponse struct {
	TaskID string `json:"task_id"`
	Queue  string `json:"queue"`
}

func (h *Handler) handlePermissionSync(w http.ResponseWriter, r *http.Request) {
	if h.client == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Queue Unavailable", "job queue is not configured")
		return
	}
	var actorID int64
	if principal := shared.PrincipalFromContext(r.Context()); principal != nil {
		actorID = principal.ID
	}
	info, err := h.client.EnqueuePermissionSync(r.Context(), "manual")
	if err != nil {
		h.logger.Error("enqueue permission sync", slog.Int64("actor_id", actorID), slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Queue Unavailable", "could not enqueue the sync run")
		return
	}
	h.logger.Info("permission sync enqueued", slog.Int64("actor_id", actorID), slog.String("task_id", info.ID))
	httpx.JSON(w, http.StatusAccepted, enqueueResponse{TaskID: info.ID, Queue: info.Queue})
}

type reportBuildRequest struct {
	Kind string `json:"kind"`
}

func (h *Handler) handleReportBuild(w http.ResponseWriter, r *http.Request) {
	var req reportBuildRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if !reports.ValidKind(req.Kind) {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unknown report kind")
		return
	}
	if h.client == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Queue Unavailable", "job queue is not configured")
		return
	}
	var actorID int64
	if principal := shared.PrincipalFromContext(r.Context()); principal != nil {
		actorID = principal.ID
	}
	info, err := h.client.EnqueueReportBuild(r.Context(), req.Kind, actorID)
	if err != nil {
		h.logger.Error("enqueue report build", slog.String("kind", req.Kind), slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Queue Unavailable", "could not enqueue the report build")
		return
	}
	h.logger.Info("report build enqueued",
		slog.String("kind", req.Kind),
		slog.Int64("actor_id", actorID),
		slog.String("task_id", info.ID),
	)
	httpx.JSON(w, http.StatusAccepted, enqueueResponse{TaskID: info.ID, Queue: info.Queue})
}
