package businesses

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pathlight-hq/pathlight/internal/shared"
)

// Repository provides data access for partner businesses.
type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Business, int, error)
	Get(ctx context.Context, id int64) (Business, error)
	Create(ctx context.Context, business Business) (Business, error)
	Update(ctx context.Context, business Business) (Business, error)
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

const businessColumns = `id, name, industry, contact_email, city, is_active, created_at, updated_at`

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Business, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		where += ` AND (name ILIKE $` + strconv.Itoa(argCount) + ` OR industry ILIKE $` + strconv.Itoa(argCount) + ` OR city ILIKE $` + strconv.Itoa(argCount) + `)`
		args = append(args, "%"+filters.Search+"%")
	}
	if filters.IsActive != nil {
		argCount++
		where += ` AND is_active = $` + strconv.Itoa(argCount)
		args = append(args, *filters.IsActive)
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM businesses`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + businessColumns + ` FROM businesses` + where + ` ORDER BY ` + sortOrder(filters.SortBy, filters.SortDir)
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

	var businesses []Business
	for rows.Next() {
		business, err := scanBusiness(rows)
		if err != nil {
			return nil, 0, err
		}
		businesses = append(businesses, business)
	}
	return businesses, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Business, error) {
	row := r.db.QueryRow(ctx, `SELECT `+businessColumns+` FROM businesses WHERE id = $1`, id)
	business, err := scanBusiness(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Business{}, shared.ErrNotFound
		}
		return Business{}, err
	}
	return business, nil
}

func (r *repository) Create(ctx context.Context, business Business) (Business, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO businesses (name, industry, contact_email, city, is_active)
VALUES ($1, $2, $3, $4, $5)
RETURNING `+businessColumns,
		business.Name, business.Industry, business.ContactEmail, business.City, business.IsActive)
	return scanBusiness(row)
}

func (r *repository) Update(ctx context.Context, business Business) (Business, error) {
	row := r.db.QueryRow(ctx, `UPDATE businesses
SET name = $2, industry = $3, contact_email = $4, city = $5, is_active = $6, updated_at = NOW()
WHERE id = $1
RETURNING `+businessColumns,
		business.ID, business.Name, business.Industry, business.ContactEmail, business.City, business.IsActive)
	updated, err := scanBusiness(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Business{}, shared.ErrNotFound
		}
		return Business{}, err
	}
	return updated, nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM businesses WHERE id = $1`, id)
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

func scanBusiness(row rowScanner) (Business, error) {
	var b Business
	err := row.Scan(&b.ID, &b.Name, &b.Industry, &b.ContactEmail, &b.City,
		&b.IsActive, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}

func sortOrder(sortBy, sortDir string) string {
	dir := "ASC"
	if sortDir == "desc" {
		dir = "DESC"
	}
	switch sortBy {
	case "city":
		return "city " + dir + ", name ASC"
	case "created_at":
		return "created_at " + dir
	default:
		return "name " + dir
	}
}
