package youth

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pathlight-hq/pathlight/internal/shared"
)

// Repository provides data access for youth profiles.
type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Profile, int, error)
	Get(ctx context.Context, id int64) (Profile, error)
	Create(ctx context.Context, profile Profile) (Profile, error)
	Update(ctx context.Context, profile Profile) (Profile, error)
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

const profileColumns = `id, name, birth_date, school, cohort, is_active, created_at, updated_at`

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Profile, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		where += ` AND (name ILIKE $` + strconv.Itoa(argCount) + ` OR school ILIKE $` + strconv.Itoa(argCount) + `)`
		args = append(args, "%"+filters.Search+"%")
	}
	if filters.Cohort != "" {
		argCount++
		where += ` AND cohort = $` + strconv.Itoa(argCount)
		args = append(args, filters.Cohort)
	}
	if filters.IsActive != nil {
		argCount++
		where += ` AND is_active = $` + strconv.Itoa(argCount)
		args = append(args, *filters.IsActive)
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM youth_profiles`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + profileColumns + ` FROM youth_profiles` + where + ` ORDER BY ` + sortOrder(filters.SortBy, filters.SortDir)
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

	var profiles []Profile
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, 0, err
		}
		profiles = append(profiles, profile)
	}
	return profiles, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Profile, error) {
	row := r.db.QueryRow(ctx, `SELECT `+profileColumns+` FROM youth_profiles WHERE id = $1`, id)
	profile, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, shared.ErrNotFound
		}
		return Profile{}, err
	}
	return profile, nil
}

func (r *repository) Create(ctx context.Context, profile Profile) (Profile, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO youth_profiles (name, birth_date, school, cohort, is_active)
VALUES ($1, $2, $3, $4, $5)
RETURNING `+profileColumns,
		profile.Name, profile.BirthDate, profile.School, profile.Cohort, profile.IsActive)
	return scanProfile(row)
}

func (r *repository) Update(ctx context.Context, profile Profile) (Profile, error) {
	row := r.db.QueryRow(ctx, `UPDATE youth_profiles
SET name = $2, birth_date = $3, school = $4, cohort = $5, is_active = $6, updated_at = NOW()
WHERE id = $1
RETURNING `+profileColumns,
		profile.ID, profile.Name, profile.BirthDate, profile.School, profile.Cohort, profile.IsActive)
	updated, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, shared.ErrNotFound
		}
		return Profile{}, err
	}
	return updated, nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM youth_profiles WHERE id = $1`, id)
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

func scanProfile(row rowScanner) (Profile, error) {
	var p Profile
	err := row.Scan(&p.ID, &p.Name, &p.BirthDate, &p.School, &p.Cohort,
		&p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func sortOrder(sortBy, sortDir string) string {
	dir := "ASC"
	if sortDir == "desc" {
		dir = "DESC"
	}
	switch sortBy {
	case "cohort":
		return "cohort " + dir + ", name ASC"
	case "created_at":
		return "created_at " + dir
	default:
		return "name " + dir
	}
}
