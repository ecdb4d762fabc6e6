package rbac

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(store Repository, cache GrantInvalidator) *Service {
	return NewService(store, cache, nil, newTestLogger())
}

func TestCreateRole(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store, nil)

	role, err := svc.CreateRole(context.Background(), "program_staff", "")
	require.NoError(t, err)

	assert.Equal(t, "program_staff", role.Name)
	assert.Equal(t, "Program Staff", role.DisplayName)
	assert.False(t, role.IsSystem)
	assert.True(t, role.IsEditable)
	assert.True(t, role.IsActive)
}

func TestCreateRoleKeepsExplicitDisplayName(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store, nil)

	role, err := svc.CreateRole(context.Background(), "mentee", "  Mentee (Cohort A)  ")
	require.NoError(t, err)
	assert.Equal(t, "Mentee (Cohort A)", role.DisplayName)
}

func TestCreateRoleRejectsInvalidNames(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store, nil)

	for _, name := range []string{"", "a", "Mentee", "1mentee", "has space", "has-dash", "mentee!"} {
		_, err := svc.CreateRole(context.Background(), name, "")
		assert.ErrorIs(t, err, ErrInvalidRoleName, "name %q should be rejected", name)
	}
}

func TestCreateRoleRejectsDuplicates(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store, nil)

	_, err := svc.CreateRole(context.Background(), "mentee", "")
	require.NoError(t, err)

	_, err = svc.CreateRole(context.Background(), "mentee", "")
	assert.ErrorIs(t, err, ErrRoleExists)
}

func TestUpdateRole(t *testing.T) {
	store := newMockStore()
	cache := &mockInvalidator{}
	svc := newTestService(store, cache)

	created, err := svc.CreateRole(context.Background(), "mentee", "")
	require.NoError(t, err)

	displayName := "Cohort Mentee"
	inactive := false
	updated, err := svc.UpdateRole(context.Background(), created.ID, &displayName, &inactive)
	require.NoError(t, err)

	assert.Equal(t, "Cohort Mentee", updated.DisplayName)
	assert.False(t, updated.IsActive)
	assert.Equal(t, []string{"mentee"}, cache.invalidated)
}

func TestUpdateRoleRejectsLockedRole(t *testing.T) {
	store := newMockStore()
	admin := store.seedRole(adminRole())
	svc := newTestService(store, nil)

	displayName := "Root"
	_, err := svc.UpdateRole(context.Background(), admin.ID, &displayName, nil)
	assert.ErrorIs(t, err, ErrRoleNotEditable)
}

func TestDeleteRoleCascadesGrants(t *testing.T) {
	store := newMockStore()
	cache := &mockInvalidator{}
	svc := newTestService(store, cache)

	_, err := store.InsertPermission(context.Background(), Permission{Resource: "mentors", Action: "list"})
	require.NoError(t, err)

	role, err := svc.CreateRole(context.Background(), "mentee", "")
	require.NoError(t, err)
	require.NoError(t, svc.GrantPermission(context.Background(), role.ID, "mentors", "list"))

	require.NoError(t, svc.DeleteRole(context.Background(), role.ID))

	_, err = store.RoleByName(context.Background(), "mentee")
	assert.ErrorIs(t, err, ErrNotFound)

	// The cascade clears the grants with the role.
	ok, err := store.HasGrant(context.Background(), role.ID, "mentors", "list")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteRoleProtectsSystemRoles(t *testing.T) {
	store := newMockStore()
	admin := store.seedRole(adminRole())
	svc := newTestService(store, nil)

	err := svc.DeleteRole(context.Background(), admin.ID)
	assert.ErrorIs(t, err, ErrSystemRole)

	_, err = store.RoleByName(context.Background(), AdminRoleName)
	assert.NoError(t, err)
}

func TestDeleteRoleMissing(t *testing.T) {
	svc := newTestService(newMockStore(), nil)
	err := svc.DeleteRole(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGrantPermission(t *testing.T) {
	store := newMockStore()
	cache := &mockInvalidator{}
	svc := newTestService(store, cache)

	_, err := store.InsertPermission(context.Background(), Permission{Resource: "mentors", Action: "list"})
	require.NoError(t, err)

	role, err := svc.CreateRole(context.Background(), "mentee", "")
	require.NoError(t, err)

	require.NoError(t, svc.GrantPermission(context.Background(), role.ID, "mentors", "list"))

	ok, err := store.HasGrant(context.Background(), role.ID, "mentors", "list")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, cache.invalidated, "mentee")
}

func TestGrantPermissionRejectsUnknownToken(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store, nil)

	role, err := svc.CreateRole(context.Background(), "mentee", "")
	require.NoError(t, err)

	err = svc.GrantPermission(context.Background(), role.ID, "mentors", "fly")
	assert.ErrorIs(t, err, ErrUnknownPermission)
	assert.Contains(t, err.Error(), "mentors:fly")
}

func TestGrantPermissionRejectsLockedRole(t *testing.T) {
	store := newMockStore()
	admin := store.seedRole(adminRole())
	_, err := store.InsertPermission(context.Background(), Permission{Resource: "mentors", Action: "list"})
	require.NoError(t, err)

	svc := newTestService(store, nil)
	err = svc.GrantPermission(context.Background(), admin.ID, "mentors", "list")
	assert.ErrorIs(t, err, ErrRoleNotEditable)
}

func TestRevokePermission(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store, nil)

	_, err := store.InsertPermission(context.Background(), Permission{Resource: "mentors", Action: "list"})
	require.NoError(t, err)

	role, err := svc.CreateRole(context.Background(), "mentee", "")
	require.NoError(t, err)
	require.NoError(t, svc.GrantPermission(context.Background(), role.ID, "mentors", "list"))

	require.NoError(t, svc.RevokePermission(context.Background(), role.ID, "mentors", "list"))

	ok, err := store.HasGrant(context.Background(), role.ID, "mentors", "list")
	require.NoError(t, err)
	assert.False(t, ok)

	err = svc.RevokePermission(context.Background(), role.ID, "mentors", "list")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetRoleIncludesGrants(t *testing.T) {
	store := newMockStore()
	svc := newTestService(store, nil)

	_, err := store.InsertPermission(context.Background(), Permission{Resource: "mentors", Action: "list"})
	require.NoError(t, err)

	role, err := svc.CreateRole(context.Background(), "mentee", "")
	require.NoError(t, err)
	require.NoError(t, svc.GrantPermission(context.Background(), role.ID, "mentors", "list"))

	detail, err := svc.GetRole(context.Background(), role.ID)
	require.NoError(t, err)
	assert.Equal(t, "mentee", detail.Role.Name)
	assert.Equal(t, []Token{{Resource: "mentors", Action: "list"}}, detail.Grants)
}
