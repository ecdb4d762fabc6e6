package reports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides the report queries and the run ledger.
type Repository interface {
	CountYouthByCohort(ctx context.Context) ([]CohortCount, error)
	CountActiveMentors(ctx context.Context) (int, error)
	CountProjectsByStatus(ctx context.Context) ([]StatusCount, error)
	MentorRoster(ctx context.Context) ([]RosterRow, error)
	BusinessDirectory(ctx context.Context) ([]DirectoryRow, error)

	InsertRun(ctx context.Context, run Run) error
	FinishRun(ctx context.Context, id uuid.UUID, status string, rowCount int, errMsg string, payload []byte) error
	ListRuns(ctx context.Context, limit int) ([]Run, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

func (r *repository) CountYouthByCohort(ctx context.Context) ([]CohortCount, error) {
	rows, err := r.db.Query(ctx, `SELECT cohort, COUNT(*) FROM youth_profiles
WHERE is_active = TRUE GROUP BY cohort ORDER BY cohort`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []CohortCount
	for rows.Next() {
		var c CohortCount
		if err := rows.Scan(&c.Cohort, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

func (r *repository) CountActiveMentors(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM mentors WHERE is_active = TRUE`).Scan(&count)
	return count, err
}

func (r *repository) CountProjectsByStatus(ctx context.Context) ([]StatusCount, error) {
	rows, err := r.db.Query(ctx, `SELECT status, COUNT(*) FROM makerspace_projects
GROUP BY status ORDER BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []StatusCount
	for rows.Next() {
		var c StatusCount
		if err := rows.Scan(&c.Status, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

func (r *repository) MentorRoster(ctx context.Context) ([]RosterRow, error) {
	rows, err := r.db.Query(ctx, `SELECT m.name, m.email, m.expertise, COUNT(b.id)
FROM mentors m
LEFT JOIN mentor_businesses b ON b.mentor_id = m.id
WHERE m.is_active = TRUE
GROUP BY m.id, m.name, m.email, m.expertise
ORDER BY m.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roster []RosterRow
	for rows.Next() {
		var row RosterRow
		if err := rows.Scan(&row.Name, &row.Email, &row.Expertise, &row.BusinessCount); err != nil {
			return nil, err
		}
		roster = append(roster, row)
	}
	return roster, rows.Err()
}

func (r *repository) BusinessDirectory(ctx context.Context) ([]DirectoryRow, error) {
	rows, err := r.db.Query(ctx, `SELECT name, industry, city, contact_email
FROM businesses WHERE is_active = TRUE ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var directory []DirectoryRow
	for rows.Next() {
		var row DirectoryRow
		if err := rows.Scan(&row.Name, &row.Industry, &row.City, &row.ContactEmail); err != nil {
			return nil, err
		}
		directory = append(directory, row)
	}
	return directory, rows.Err()
}

func (r *repository) InsertRun(ctx context.Context, run Run) error {
	_, err := r.db.Exec(ctx, `INSERT INTO report_runs (id, kind, status, row_count, requested_by, started_at)
VALUES ($1, $2, $3, $4, $5, $6)`,
		run.ID, run.Kind, run.Status, run.RowCount, run.RequestedBy, run.StartedAt)
	return err
}

func (r *repository) FinishRun(ctx context.Context, id uuid.UUID, status string, rowCount int, errMsg string, payload []byte) error {
	_, err := r.db.Exec(ctx, `UPDATE report_runs
SET status = $2, row_count = $3, error = NULLIF($4, ''), payload = $5, finished_at = $6
WHERE id = $1`,
		id, status, rowCount, errMsg, payload, time.Now())
	return err
}

func (r *repository) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Query(ctx, `SELECT id, kind, status, row_count, requested_by, COALESCE(error, ''), started_at, finished_at
FROM report_runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.ID, &run.Kind, &run.Status, &run.RowCount,
			&run.RequestedBy, &run.Error, &run.StartedAt, &run.FinishedAt); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
