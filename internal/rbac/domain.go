// Package rbac derives the permission catalog from the routing table and
// enforces role-based grants on every API request.
package rbac

import (
	"errors"
	"time"
)

// AdminRoleName is the reserved role that bypasses grant checks. The
// comparison is exact: renaming or re-casing the role forfeits the bypass.
const AdminRoleName = "administrator"

// Role groups permissions under a name users are assigned to.
type Role struct {
	ID          int64
	Name        string
	DisplayName string
	IsSystem    bool
	IsEditable  bool
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Permission is one catalog entry, unique per (resource, action).
type Permission struct {
	ID          int64
	Resource    string
	Action      string
	Description string
	CreatedAt   time.Time
}

// Token identifies a permission by its natural key.
type Token struct {
	Resource string
	Action   string
}

func (t Token) String() string {
	return t.Resource + ":" + t.Action
}

// Grant ties a role to a permission token.
type Grant struct {
	RoleID    int64
	Resource  string
	Action    string
	CreatedAt time.Time
}

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("rbac: not found")
	// ErrRoleExists indicates a role name collision on create.
	ErrRoleExists = errors.New("rbac: role already exists")
	// ErrSystemRole indicates an attempt to delete a system role.
	ErrSystemRole = errors.New("rbac: system role cannot be deleted")
	// ErrRoleNotEditable indicates a grant mutation on a locked role.
	ErrRoleNotEditable = errors.New("rbac: role is not editable")
	// ErrUnknownPermission indicates a grant referencing a token outside the catalog.
	ErrUnknownPermission = errors.New("rbac: permission not in catalog")
	// ErrInvalidRoleName indicates a role name outside the allowed pattern.
	ErrInvalidRoleName = errors.New("rbac: invalid role name")
)
