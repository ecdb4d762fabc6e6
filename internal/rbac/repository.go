package rbac

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the persistence port for roles, the permission catalog and
// grants.
type Repository interface {
	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id int64) (Role, error)
	RoleByName(ctx context.Context, name string) (Role, error)
	CreateRole(ctx context.Context, role Role) (Role, error)
	UpdateRole(ctx context.Context, role Role) (Role, error)
	DeleteRole(ctx context.Context, id int64) error
	EnsureRole(ctx context.Context, role Role) (Role, error)

	ListPermissions(ctx context.Context) ([]Permission, error)
	GetPermission(ctx context.Context, resource, action string) (Permission, error)
	InsertPermission(ctx context.Context, perm Permission) (bool, error)

	GrantsForRole(ctx context.Context, roleID int64) ([]Token, error)
	HasGrant(ctx context.Context, roleID int64, resource, action string) (bool, error)
	Grant(ctx context.Context, roleID int64, resource, action string) (bool, error)
	Revoke(ctx context.Context, roleID int64, resource, action string) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns a Postgres-backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

const roleColumns = `id, name, display_name, is_system, is_editable, is_active, created_at, updated_at`

func (r *repository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.db.Query(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (r *repository) GetRole(ctx context.Context, id int64) (Role, error) {
	row := r.db.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id)
	return scanRoleRow(row)
}

func (r *repository) RoleByName(ctx context.Context, name string) (Role, error) {
	row := r.db.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE name = $1`, name)
	return scanRoleRow(row)
}

func (r *repository) CreateRole(ctx context.Context, role Role) (Role, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO roles (name, display_name, is_system, is_editable, is_active)
VALUES ($1, $2, $3, $4, $5)
RETURNING `+roleColumns,
		role.Name, role.DisplayName, role.IsSystem, role.IsEditable, role.IsActive)
	created, err := scanRoleRow(row)
	if err != nil {
		if isUniqueViolation(err) {
			return Role{}, ErrRoleExists
		}
		return Role{}, err
	}
	return created, nil
}

func (r *repository) UpdateRole(ctx context.Context, role Role) (Role, error) {
	row := r.db.QueryRow(ctx, `UPDATE roles
SET display_name = $2, is_active = $3, updated_at = NOW()
WHERE id = $1
RETURNING `+roleColumns,
		role.ID, role.DisplayName, role.IsActive)
	return scanRoleRow(row)
}

// DeleteRole removes a role. Grants go with it through the cascading
// foreign key on role_permissions.
func (r *repository) DeleteRole(ctx context.Context, id int64) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// EnsureRole upserts a role by name, repairing the flag columns when the
// row already exists.
func (r *repository) EnsureRole(ctx context.Context, role Role) (Role, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO roles (name, display_name, is_system, is_editable, is_active)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (name) DO UPDATE
SET display_name = EXCLUDED.display_name,
    is_system = EXCLUDED.is_system,
    is_editable = EXCLUDED.is_editable,
    is_active = EXCLUDED.is_active,
    updated_at = NOW()
RETURNING `+roleColumns,
		role.Name, role.DisplayName, role.IsSystem, role.IsEditable, role.IsActive)
	return scanRoleRow(row)
}

func (r *repository) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := r.db.Query(ctx, `SELECT id, resource, action, description, created_at
FROM permissions ORDER BY resource, action`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Resource, &p.Action, &p.Description, &p.CreatedAt); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

func (r *repository) GetPermission(ctx context.Context, resource, action string) (Permission, error) {
	var p Permission
	err := r.db.QueryRow(ctx, `SELECT id, resource, action, description, created_at
FROM permissions WHERE resource = $1 AND action = $2`, resource, action).
		Scan(&p.ID, &p.Resource, &p.Action, &p.Description, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Permission{}, ErrNotFound
		}
		return Permission{}, err
	}
	return p, nil
}

// InsertPermission adds a catalog entry, reporting false when the entry
// already existed. A unique violation from a racing writer counts as
// already existing, not as failure.
func (r *repository) InsertPermission(ctx context.Context, perm Permission) (bool, error) {
	cmd, err := r.db.Exec(ctx, `INSERT INTO permissions (resource, action, description)
VALUES ($1, $2, $3)
ON CONFLICT (resource, action) DO NOTHING`,
		perm.Resource, perm.Action, perm.Description)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *repository) GrantsForRole(ctx context.Context, roleID int64) ([]Token, error) {
	rows, err := r.db.Query(ctx, `SELECT resource, action FROM role_permissions
WHERE role_id = $1 ORDER BY resource, action`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []Token
	for rows.Next() {
		var t Token
		if err := rows.Scan(&t.Resource, &t.Action); err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

func (r *repository) HasGrant(ctx context.Context, roleID int64, resource, action string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (
SELECT 1 FROM role_permissions WHERE role_id = $1 AND resource = $2 AND action = $3)`,
		roleID, resource, action).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (r *repository) Grant(ctx context.Context, roleID int64, resource, action string) (bool, error) {
	cmd, err := r.db.Exec(ctx, `INSERT INTO role_permissions (role_id, resource, action)
VALUES ($1, $2, $3)
ON CONFLICT DO NOTHING`,
		roleID, resource, action)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *repository) Revoke(ctx context.Context, roleID int64, resource, action string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM role_permissions
WHERE role_id = $1 AND resource = $2 AND action = $3`,
		roleID, resource, action)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRole(row rowScanner) (Role, error) {
	var role Role
	err := row.Scan(&role.ID, &role.Name, &role.DisplayName, &role.IsSystem,
		&role.IsEditable, &role.IsActive, &role.CreatedAt, &role.UpdatedAt)
	return role, err
}

func scanRoleRow(row rowScanner) (Role, error) {
	role, err := scanRole(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, ErrNotFound
		}
		return Role{}, err
	}
	return role, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
