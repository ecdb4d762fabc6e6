package rbac

import (
	"context"
	"io"
	"log/slog"
	"time"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockInvalidator records which roles had their cached grants dropped.
type mockInvalidator struct {
	invalidated []string
	err         error
}

func (m *mockInvalidator) Invalidate(ctx context.Context, role Role) error {
	if m.err != nil {
		return m.err
	}
	m.invalidated = append(m.invalidated, role.Name)
	return nil
}

// mockStore is an in-memory Repository used across the package tests.
type mockStore struct {
	roles       map[int64]Role
	rolesByName map[string]int64
	nextRoleID  int64

	perms      map[Token]Permission
	nextPermID int64

	grants map[int64]map[Token]struct{}

	// Error injection
	listPermissionsErr error
	roleByNameErr      error
	hasGrantErr        error
	insertPermErr      error
	grantErr           error
	ensureRoleErr      error
	deleteRoleErr      error
}

func newMockStore() *mockStore {
	return &mockStore{
		roles:       make(map[int64]Role),
		rolesByName: make(map[string]int64),
		nextRoleID:  1,
		perms:       make(map[Token]Permission),
		nextPermID:  1,
		grants:      make(map[int64]map[Token]struct{}),
	}
}

func (m *mockStore) ListRoles(ctx context.Context) ([]Role, error) {
	out := make([]Role, 0, len(m.roles))
	for _, role := range m.roles {
		out = append(out, role)
	}
	return out, nil
}

func (m *mockStore) GetRole(ctx context.Context, id int64) (Role, error) {
	role, ok := m.roles[id]
	if !ok {
		return Role{}, ErrNotFound
	}
	return role, nil
}

func (m *mockStore) RoleByName(ctx context.Context, name string) (Role, error) {
	if m.roleByNameErr != nil {
		return Role{}, m.roleByNameErr
	}
	id, ok := m.rolesByName[name]
	if !ok {
		return Role{}, ErrNotFound
	}
	return m.roles[id], nil
}

func (m *mockStore) CreateRole(ctx context.Context, role Role) (Role, error) {
	if _, exists := m.rolesByName[role.Name]; exists {
		return Role{}, ErrRoleExists
	}
	role.ID = m.nextRoleID
	m.nextRoleID++
	role.CreatedAt = time.Now()
	role.UpdatedAt = role.CreatedAt
	m.roles[role.ID] = role
	m.rolesByName[role.Name] = role.ID
	return role, nil
}

func (m *mockStore) UpdateRole(ctx context.Context, role Role) (Role, error) {
	stored, ok := m.roles[role.ID]
	if !ok {
		return Role{}, ErrNotFound
	}
	stored.DisplayName = role.DisplayName
	stored.IsActive = role.IsActive
	stored.UpdatedAt = time.Now()
	m.roles[role.ID] = stored
	return stored, nil
}

// DeleteRole mirrors the cascading foreign key: grants disappear with the
// role.
func (m *mockStore) DeleteRole(ctx context.Context, id int64) error {
	if m.deleteRoleErr != nil {
		return m.deleteRoleErr
	}
	role, ok := m.roles[id]
	if !ok {
		return ErrNotFound
	}
	delete(m.roles, id)
	delete(m.rolesByName, role.Name)
	delete(m.grants, id)
	return nil
}

func (m *mockStore) EnsureRole(ctx context.Context, role Role) (Role, error) {
	if m.ensureRoleErr != nil {
		return Role{}, m.ensureRoleErr
	}
	if id, ok := m.rolesByName[role.Name]; ok {
		stored := m.roles[id]
		stored.DisplayName = role.DisplayName
		stored.IsSystem = role.IsSystem
		stored.IsEditable = role.IsEditable
		stored.IsActive = role.IsActive
		stored.UpdatedAt = time.Now()
		m.roles[id] = stored
		return stored, nil
	}
	return m.CreateRole(ctx, role)
}

func (m *mockStore) ListPermissions(ctx context.Context) ([]Permission, error) {
	if m.listPermissionsErr != nil {
		return nil, m.listPermissionsErr
	}
	out := make([]Permission, 0, len(m.perms))
	for _, p := range m.perms {
		out = append(out, p)
	}
	return out, nil
}

func (m *mockStore) GetPermission(ctx context.Context, resource, action string) (Permission, error) {
	p, ok := m.perms[Token{Resource: resource, Action: action}]
	if !ok {
		return Permission{}, ErrNotFound
	}
	return p, nil
}

func (m *mockStore) InsertPermission(ctx context.Context, perm Permission) (bool, error) {
	if m.insertPermErr != nil {
		return false, m.insertPermErr
	}
	key := Token{Resource: perm.Resource, Action: perm.Action}
	if _, exists := m.perms[key]; exists {
		return false, nil
	}
	perm.ID = m.nextPermID
	m.nextPermID++
	perm.CreatedAt = time.Now()
	m.perms[key] = perm
	return true, nil
}

func (m *mockStore) GrantsForRole(ctx context.Context, roleID int64) ([]Token, error) {
	out := make([]Token, 0, len(m.grants[roleID]))
	for token := range m.grants[roleID] {
		out = append(out, token)
	}
	return out, nil
}

func (m *mockStore) HasGrant(ctx context.Context, roleID int64, resource, action string) (bool, error) {
	if m.hasGrantErr != nil {
		return false, m.hasGrantErr
	}
	_, ok := m.grants[roleID][Token{Resource: resource, Action: action}]
	return ok, nil
}

func (m *mockStore) Grant(ctx context.Context, roleID int64, resource, action string) (bool, error) {
	if m.grantErr != nil {
		return false, m.grantErr
	}
	if m.grants[roleID] == nil {
		m.grants[roleID] = make(map[Token]struct{})
	}
	key := Token{Resource: resource, Action: action}
	if _, exists := m.grants[roleID][key]; exists {
		return false, nil
	}
	m.grants[roleID][key] = struct{}{}
	return true, nil
}

func (m *mockStore) Revoke(ctx context.Context, roleID int64, resource, action string) error {
	key := Token{Resource: resource, Action: action}
	if _, exists := m.grants[roleID][key]; !exists {
		return ErrNotFound
	}
	delete(m.grants[roleID], key)
	return nil
}

// seedRole inserts a role directly, bypassing service validation.
func (m *mockStore) seedRole(role Role) Role {
	created, _ := m.CreateRole(context.Background(), role)
	return created
}
