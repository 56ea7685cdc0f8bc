package service

import (
	"context"
	"testing"

	"github.com/fzkn4/gate-security/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestCreateIdentity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	identity, err := env.svc.CreateIdentity(ctx, env.admin, models.CreateIdentityRequest{
		Login:    "  alice ",
		Email:    "alice@example.com",
		Password: "s3cret-pass",
		FullName: "Alice Reyes",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", identity.Login)
	assert.Equal(t, models.RoleUser, identity.Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(identity.PasswordHash), []byte("s3cret-pass")))

	_, err = env.svc.CreateIdentity(ctx, env.admin, models.CreateIdentityRequest{
		Login:    "alice",
		Email:    "other@example.com",
		Password: "s3cret-pass",
		FullName: "Other",
	})
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestCreateIdentityValidation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		req  models.CreateIdentityRequest
	}{
		{"short login", models.CreateIdentityRequest{Login: "al", Email: "a@x.io", Password: "password1", FullName: "A"}},
		{"bad email", models.CreateIdentityRequest{Login: "alice", Email: "alice", Password: "password1", FullName: "A"}},
		{"short password", models.CreateIdentityRequest{Login: "alice", Email: "a@x.io", Password: "short", FullName: "A"}},
		{"missing name", models.CreateIdentityRequest{Login: "alice", Email: "a@x.io", Password: "password1"}},
		{"unknown role", models.CreateIdentityRequest{Login: "alice", Email: "a@x.io", Password: "password1", FullName: "A", Role: "root"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.CreateIdentity(context.Background(), env.admin, tt.req)
			assert.ErrorIs(t, err, models.ErrInvalidInput)
		})
	}
}

func TestCreateIdentityRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedIdentity(t, "alice", models.RoleUser)

	_, err := env.svc.CreateIdentity(context.Background(), user, models.CreateIdentityRequest{
		Login:    "mallory",
		Email:    "mallory@example.com",
		Password: "password1",
		FullName: "Mallory",
	})
	assert.ErrorIs(t, err, models.ErrForbidden)
}

func TestSelfRoleElevationIsForbidden(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedIdentity(t, "alice", models.RoleUser)

	_, err := env.svc.UpdateIdentity(ctx, user, user.ID, models.UpdateIdentityRequest{Role: ptr(models.RoleAdmin)})
	assert.ErrorIs(t, err, models.ErrForbidden)

	stored, err := env.store.GetIdentityByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, stored.Role)
}

func TestUserUpdatesOwnProfileOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.seedIdentity(t, "alice", models.RoleUser)
	bob := env.seedIdentity(t, "bob", models.RoleUser)

	updated, err := env.svc.UpdateIdentity(ctx, alice, alice.ID, models.UpdateIdentityRequest{FullName: ptr("Alice R.")})
	require.NoError(t, err)
	assert.Equal(t, "Alice R.", updated.FullName)

	_, err = env.svc.UpdateIdentity(ctx, alice, bob.ID, models.UpdateIdentityRequest{FullName: ptr("Hacked")})
	assert.ErrorIs(t, err, models.ErrForbidden)

	_, err = env.svc.GetIdentity(ctx, alice, bob.ID)
	assert.ErrorIs(t, err, models.ErrForbidden)

	_, err = env.svc.UpdateIdentity(ctx, alice, alice.ID, models.UpdateIdentityRequest{})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestUpdateIdentityEmailConflict(t *testing.T) {
	env := newTestEnv(t)
	alice := env.seedIdentity(t, "alice", models.RoleUser)

	_, err := env.svc.UpdateIdentity(context.Background(), env.admin, alice.ID,
		models.UpdateIdentityRequest{Email: ptr("admin@example.com")})
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestListIdentitiesScope(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.seedIdentity(t, "alice", models.RoleUser)
	env.seedIdentity(t, "bob", models.RoleUser)
	env.createVehicle(t, alice, "AAA-111")

	all, err := env.svc.ListIdentities(ctx, env.admin)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	mine, err := env.svc.ListIdentities(ctx, alice)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, alice.ID, mine[0].ID)
	assert.Equal(t, 1, mine[0].VehicleCount)
}

func TestLastAdminGuard(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.DeleteIdentity(ctx, env.admin, env.admin.ID)
	assert.ErrorIs(t, err, models.ErrConflict)

	_, err = env.svc.UpdateIdentity(ctx, env.admin, env.admin.ID, models.UpdateIdentityRequest{Role: ptr(models.RoleUser)})
	assert.ErrorIs(t, err, models.ErrConflict)

	second := env.seedIdentity(t, "second", models.RoleAdmin)
	_, err = env.svc.UpdateIdentity(ctx, env.admin, second.ID, models.UpdateIdentityRequest{Role: ptr(models.RoleUser)})
	assert.NoError(t, err)
}

func TestDeleteIdentityCascade(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.seedIdentity(t, "alice", models.RoleUser)
	bob := env.seedIdentity(t, "bob", models.RoleUser)

	v1 := env.createVehicle(t, alice, "AAA-111")
	v2 := env.createVehicle(t, alice, "BBB-222")
	kept := env.createVehicle(t, bob, "CCC-333")
	env.scan(t, env.admin, v1.ScanPayload)
	env.scan(t, env.admin, v1.ScanPayload)
	env.scan(t, env.admin, v2.ScanPayload)
	env.scan(t, env.admin, kept.ScanPayload)

	result, err := env.svc.DeleteIdentity(ctx, env.admin, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.Vehicles)
	assert.Equal(t, int64(3), result.Events)

	vehicles, err := env.svc.ListVehicles(ctx, env.admin, nil)
	require.NoError(t, err)
	require.Len(t, vehicles, 1)
	assert.Equal(t, kept.ID, vehicles[0].ID)

	events := env.store.Events()
	require.Len(t, events, 1)
	assert.Equal(t, kept.ID, events[0].VehicleID)

	_, err = env.svc.DeleteIdentity(ctx, env.admin, alice.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestBootstrapAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// An admin already exists
	created, err := env.svc.EnsureBootstrapAdmin(ctx, "root", "root@example.com", "")
	require.NoError(t, err)
	assert.Nil(t, created)

	_, err = env.svc.DeleteIdentity(ctx, env.admin, env.admin.ID)
	require.ErrorIs(t, err, models.ErrConflict)
}

func TestBootstrapAdminMustChangeCredential(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Demote the seeded admin so no admin remains
	stored, err := env.store.UpdateIdentity(ctx, env.admin.ID, func(i *models.Identity) error {
		i.Role = models.RoleUser
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, models.RoleUser, stored.Role)

	root, err := env.svc.EnsureBootstrapAdmin(ctx, "root", "root@example.com", "initial-pass")
	require.NoError(t, err)
	require.NotNil(t, root)
	assert.True(t, root.MustChangeCredential)
	assert.Equal(t, models.RoleAdmin, root.Role)

	resp, err := env.svc.Login(ctx, models.LoginRequest{Login: "root", Password: "initial-pass"})
	require.NoError(t, err)
	actor, err := env.svc.Authenticate(ctx, resp.AccessToken)
	require.NoError(t, err)

	_, err = env.svc.ListVehicles(ctx, actor, nil)
	assert.ErrorIs(t, err, models.ErrForbidden)
	_, err = env.svc.UpdateIdentity(ctx, actor, actor.ID, models.UpdateIdentityRequest{FullName: ptr("Root")})
	assert.ErrorIs(t, err, models.ErrForbidden)

	self, err := env.svc.GetIdentity(ctx, actor, actor.ID)
	require.NoError(t, err)
	assert.Equal(t, "root", self.Login)

	changed, err := env.svc.UpdateIdentity(ctx, actor, actor.ID, models.UpdateIdentityRequest{Password: ptr("a-new-password")})
	require.NoError(t, err)
	assert.False(t, changed.MustChangeCredential)

	actor, err = env.svc.Authenticate(ctx, resp.AccessToken)
	require.NoError(t, err)
	_, err = env.svc.ListVehicles(ctx, actor, nil)
	assert.NoError(t, err)
}

func TestBootstrapAdminGeneratesPassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.store.DeleteIdentity(ctx, env.admin.ID, func(*models.Identity) error { return nil })
	require.NoError(t, err)

	root, err := env.svc.EnsureBootstrapAdmin(ctx, "admin", "admin@example.com", "")
	require.NoError(t, err)
	require.NotNil(t, root)
	assert.NotEmpty(t, root.PasswordHash)

	again, err := env.svc.EnsureBootstrapAdmin(ctx, "admin", "admin@example.com", "")
	require.NoError(t, err)
	assert.Nil(t, again)
}
