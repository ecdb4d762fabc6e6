package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/pathlight-hq/pathlight/internal/jobs"
	"github.com/pathlight-hq/pathlight/internal/reports"
)

// ReportRunner builds a report export and records it in the run ledger.
type ReportRunner interface {
	RunReport(ctx context.Context, kind string, requestedBy int64) (reports.Run, error)
}

// ReportBuildJob renders report exports in the background so large pulls
// stay off the request path.
type ReportBuildJob struct {
	Reports ReportRunner
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewReportBuildJob wires dependencies for the report build handler.
func NewReportBuildJob(runner ReportRunner, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReportBuildJob {
	return &ReportBuildJob{Reports: runner, Logger: logger, Metrics: metrics}
}

// Handle builds one report export.
func (j *ReportBuildJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Reports == nil {
		return errors.New("report build: handler not configured")
	}
	var payload ReportBuildPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskReportBuild)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	start := time.Now()
	logger := j.logger().With(
		slog.String("kind", payload.Kind),
		slog.Int64("requested_by", payload.RequestedBy),
	)
	logger.Info("starting report build")

	run, err := j.Reports.RunReport(ctx, payload.Kind, payload.RequestedBy)
	if err != nil {
		resultErr = err
		logger.Error("report build failed", slog.Any("error", err))
		if errors.Is(err, reports.ErrUnknownKind) {
			// Retrying cannot fix a bad kind.
			return asynq.SkipRetry
		}
		return resultErr
	}

	logger.Info("completed report build",
		slog.String("run_id", run.ID.String()),
		slog.Int("rows", run.RowCount),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

func (j *ReportBuildJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskReportBuild))
	}
	return slog.Default().With(slog.String("job", TaskReportBuild))
}

func (j *ReportBuildJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
