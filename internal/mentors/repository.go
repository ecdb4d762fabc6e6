package mentors

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pathlight-hq/pathlight/internal/platform/db"
	"github.com/pathlight-hq/pathlight/internal/shared"
)

// Repository provides data access for mentors and their businesses.
type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Mentor, int, error)
	Get(ctx context.Context, id int64) (Mentor, error)
	CreateWithBusinesses(ctx context.Context, mentor Mentor, businesses []Business) (Mentor, error)
	Update(ctx context.Context, mentor Mentor) (Mentor, error)
	Delete(ctx context.Context, id int64) error

	ListBusinesses(ctx context.Context, mentorID *int64) ([]Business, error)
	GetBusiness(ctx context.Context, id int64) (Business, error)
	AddBusiness(ctx context.Context, business Business) (Business, error)
	DeleteBusiness(ctx context.Context, id int64) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

const mentorColumns = `id, name, email, phone, expertise, is_active, created_at, updated_at`
const businessColumns = `id, mentor_id, name, industry, founded_year, created_at, updated_at`

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Mentor, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		where += ` AND (name ILIKE $` + strconv.Itoa(argCount) + ` OR email ILIKE $` + strconv.Itoa(argCount) + ` OR expertise ILIKE $` + strconv.Itoa(argCount) + `)`
		args = append(args, "%"+filters.Search+"%")
	}
	if filters.IsActive != nil {
		argCount++
		where += ` AND is_active = $` + strconv.Itoa(argCount)
		args = append(args, *filters.IsActive)
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM mentors`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + mentorColumns + ` FROM mentors` + where + ` ORDER BY ` + sortOrder(filters.SortBy, filters.SortDir)
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

	var mentors []Mentor
	for rows.Next() {
		mentor, err := scanMentor(rows)
		if err != nil {
			return nil, 0, err
		}
		mentors = append(mentors, mentor)
	}
	return mentors, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Mentor, error) {
	row := r.db.QueryRow(ctx, `SELECT `+mentorColumns+` FROM mentors WHERE id = $1`, id)
	mentor, err := scanMentor(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Mentor{}, shared.ErrNotFound
		}
		return Mentor{}, err
	}
	businesses, err := r.ListBusinesses(ctx, &mentor.ID)
	if err != nil {
		return Mentor{}, err
	}
	mentor.Businesses = businesses
	return mentor, nil
}

// CreateWithBusinesses inserts the mentor and any initial businesses in one
// transaction, so a failed business insert leaves no orphan mentor row.
func (r *repository) CreateWithBusinesses(ctx context.Context, mentor Mentor, businesses []Business) (Mentor, error) {
	var created Mentor
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `INSERT INTO mentors (name, email, phone, expertise, is_active)
VALUES ($1, $2, $3, $4, $5)
RETURNING `+mentorColumns,
			mentor.Name, mentor.Email, mentor.Phone, mentor.Expertise, mentor.IsActive)
		var err error
		created, err = scanMentor(row)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.ConstraintName == "uq_mentors_email" {
				return ErrEmailTaken
			}
			return err
		}
		for _, business := range businesses {
			row := tx.QueryRow(ctx, `INSERT INTO mentor_businesses (mentor_id, name, industry, founded_year)
VALUES ($1, $2, $3, $4)
RETURNING `+businessColumns,
				created.ID, business.Name, business.Industry, business.FoundedYear)
			b, err := scanBusiness(row)
			if err != nil {
				return err
			}
			created.Businesses = append(created.Businesses, b)
		}
		return nil
	})
	if err != nil {
		return Mentor{}, err
	}
	return created, nil
}

func (r *repository) Update(ctx context.Context, mentor Mentor) (Mentor, error) {
	row := r.db.QueryRow(ctx, `UPDATE mentors
SET name = $2, email = $3, phone = $4, expertise = $5, is_active = $6, updated_at = NOW()
WHERE id = $1
RETURNING `+mentorColumns,
		mentor.ID, mentor.Name, mentor.Email, mentor.Phone, mentor.Expertise, mentor.IsActive)
	updated, err := scanMentor(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Mentor{}, shared.ErrNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.ConstraintName == "uq_mentors_email" {
			return Mentor{}, ErrEmailTaken
		}
		return Mentor{}, err
	}
	return updated, nil
}

// Delete removes the mentor. mentor_businesses rows follow through the
// ON DELETE CASCADE foreign key.
func (r *repository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM mentors WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) ListBusinesses(ctx context.Context, mentorID *int64) ([]Business, error) {
	query := `SELECT ` + businessColumns + ` FROM mentor_businesses`
	args := []any{}
	if mentorID != nil {
		query += ` WHERE mentor_id = $1`
		args = append(args, *mentorID)
	}
	query += ` ORDER BY name ASC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var businesses []Business
	for rows.Next() {
		b, err := scanBusiness(rows)
		if err != nil {
			return nil, err
		}
		businesses = append(businesses, b)
	}
	return businesses, rows.Err()
}

func (r *repository) GetBusiness(ctx context.Context, id int64) (Business, error) {
	row := r.db.QueryRow(ctx, `SELECT `+businessColumns+` FROM mentor_businesses WHERE id = $1`, id)
	b, err := scanBusiness(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Business{}, shared.ErrNotFound
		}
		return Business{}, err
	}
	return b, nil
}

func (r *repository) AddBusiness(ctx context.Context, business Business) (Business, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO mentor_businesses (mentor_id, name, industry, founded_year)
VALUES ($1, $2, $3, $4)
RETURNING `+businessColumns,
		business.MentorID, business.Name, business.Industry, business.FoundedYear)
	created, err := scanBusiness(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return Business{}, shared.ErrNotFound
		}
		return Business{}, err
	}
	return created, nil
}

func (r *repository) DeleteBusiness(ctx context.Context, id int64) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM mentor_businesses WHERE id = $1`, id)
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

func scanMentor(row rowScanner) (Mentor, error) {
	var m Mentor
	err := row.Scan(&m.ID, &m.Name, &m.Email, &m.Phone, &m.Expertise,
		&m.IsActive, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

func scanBusiness(row rowScanner) (Business, error) {
	var b Business
	err := row.Scan(&b.ID, &b.MentorID, &b.Name, &b.Industry, &b.FoundedYear,
		&b.CreatedAt, &b.UpdatedAt)
	return b, err
}

func sortOrder(sortBy, sortDir string) string {
	dir := "ASC"
	if sortDir == "desc" {
		dir = "DESC"
	}
	switch sortBy {
	case "email":
		return "email " + dir
	case "created_at":
		return "created_at " + dir
	default:
		return "name " + dir
	}
}
