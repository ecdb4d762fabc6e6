package makerspace

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pathlight-hq/pathlight/internal/shared"
)

// Repository provides data access for makerspace projects.
type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Project, int, error)
	Get(ctx context.Context, id int64) (Project, error)
	Create(ctx context.Context, project Project) (Project, error)
	Update(ctx context.Context, project Project) (Project, error)
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

const projectColumns = `id, title, description, status, youth_id, created_at, updated_at`

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Project, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		where += ` AND (title ILIKE $` + strconv.Itoa(argCount) + ` OR description ILIKE $` + strconv.Itoa(argCount) + `)`
		args = append(args, "%"+filters.Search+"%")
	}
	if filters.Status != "" {
		argCount++
		where += ` AND status = $` + strconv.Itoa(argCount)
		args = append(args, filters.Status)
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM makerspace_projects`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + projectColumns + ` FROM makerspace_projects` + where + ` ORDER BY ` + sortOrder(filters.SortBy, filters.SortDir)
	if filters.Limit > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, filters.Limit)
		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		args = append(args, filters.Offset())
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, 0, err
		}
		projects = append(projects, project)
	}
	return projects, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Project, error) {
	row := r.db.QueryRow(ctx, `SELECT `+projectColumns+` FROM makerspace_projects WHERE id = $1`, id)
	project, err := scanProject(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Project{}, shared.ErrNotFound
		}
		return Project{}, err
	}
	return project, nil
}

func (r *repository) Create(ctx context.Context, project Project) (Project, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO makerspace_projects (title, description, status, youth_id)
VALUES ($1, $2, $3, $4)
RETURNING `+projectColumns,
		project.Title, project.Description, project.Status, project.YouthID)
	return scanProject(row)
}

func (r *repository) Update(ctx context.Context, project Project) (Project, error) {
	row := r.db.QueryRow(ctx, `UPDATE makerspace_projects
SET title = $2, description = $3, status = $4, youth_id = $5, updated_at = NOW()
WHERE id = $1
RETURNING `+projectColumns,
		project.ID, project.Title, project.Description, project.Status, project.YouthID)
	updated, err := scanProject(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Project{}, shared.ErrNotFound
		}
		return Project{}, err
	}
	return updated, nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM makerspace_projects WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (Project, error) {
	var p Project
	err := row.Scan(&p.ID, &p.Title, &p.Description, &p.Status, &p.YouthID,
		&p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func sortOrder(sortBy, sortDir string) string {
	dir := "ASC"
	if sortDir == "desc" {
		dir = "DESC"
	}
	switch sortBy {
	case "status":
		return "status " + dir + ", title ASC"
	case "created_at":
		return "created_at " + dir
	default:
		return "title " + dir
	}
}
