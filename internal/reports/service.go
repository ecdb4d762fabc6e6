package reports

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Service builds reports for the HTTP exporters and the background task.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService builds a Service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// BuildSummary gathers the three headline queries concurrently.
func (s *Service) BuildSummary(ctx context.Context) (Summary, error) {
	var summary Summary
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		cohorts, err := s.repo.CountYouthByCohort(ctx)
		if err != nil {
			return err
		}
		summary.Cohorts = cohorts
		return nil
	})
	g.Go(func() error {
		count, err := s.repo.CountActiveMentors(ctx)
		if err != nil {
			return err
		}
		summary.ActiveMentors = count
		return nil
	})
	g.Go(func() error {
		projects, err := s.repo.CountProjectsByStatus(ctx)
		if err != nil {
			return err
		}
		summary.Projects = projects
		return nil
	})

	if err := g.Wait(); err != nil {
		return Summary{}, err
	}
	return summary, nil
}

// WriteReport builds the named report into w and returns the data row
// count.
func (s *Service) WriteReport(ctx context.Context, kind string, w io.Writer) (int, error) {
	switch kind {
	case KindYouthSummary:
		summary, err := s.BuildSummary(ctx)
		if err != nil {
			return 0, err
		}
		rows := len(summary.Cohorts) + 1 + len(summary.Projects)
		return rows, WriteSummaryCSV(w, summary)
	case KindMentorRoster:
		roster, err := s.repo.MentorRoster(ctx)
		if err != nil {
			return 0, err
		}
		return len(roster), WriteRosterCSV(w, roster)
	case KindBusinessDirectory:
		directory, err := s.repo.BusinessDirectory(ctx)
		if err != nil {
			return 0, err
		}
		return len(directory), WriteDirectoryCSV(w, directory)
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
}

// RunReport executes a recorded background build: a report_runs row keyed
// by a fresh UUID brackets the build, and the finished CSV is stored on
// the row.
func (s *Service) RunReport(ctx context.Context, kind string, requestedBy int64) (Run, error) {
	if !ValidKind(kind) {
		return Run{}, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	run := Run{
		ID:          uuid.New(),
		Kind:        kind,
		Status:      RunRunning,
		RequestedBy: requestedBy,
		StartedAt:   time.Now(),
	}
	if err := s.repo.InsertRun(ctx, run); err != nil {
		return Run{}, err
	}

	var buf bytes.Buffer
	rowCount, buildErr := s.WriteReport(ctx, kind, &buf)
	status := RunSucceeded
	errMsg := ""
	if buildErr != nil {
		status = RunFailed
		errMsg = buildErr.Error()
		buf.Reset()
		s.logger.Error("report build failed", slog.Any("error", buildErr), slog.String("kind", kind))
	}
	if err := s.repo.FinishRun(ctx, run.ID, status, rowCount, errMsg, buf.Bytes()); err != nil {
		return Run{}, err
	}
	run.Status = status
	run.RowCount = rowCount
	run.Error = errMsg
	return run, buildErr
}

// ListRuns returns recent background builds, newest first.
func (s *Service) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	return s.repo.ListRuns(ctx, limit)
}
