package service

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/fzkn4/gate-security/internal/models"
	"github.com/fzkn4/gate-security/internal/scancode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func TestCreateVehicleIssuesPayload(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedIdentity(t, "alice", models.RoleUser)

	v, png, err := env.svc.CreateVehicle(context.Background(), user, models.CreateVehicleRequest{
		Plate:    " abc-123 ",
		Category: "sedan",
		Color:    ptr("red"),
	})
	require.NoError(t, err)

	assert.Equal(t, "ABC-123", v.Plate)
	assert.Equal(t, user.ID, v.OwnerID)
	assert.Equal(t, user.FullName, v.OwnerName)
	assert.Equal(t, fmt.Sprintf("VEHICLE:%d:ABC-123", v.ID), v.ScanPayload)
	assert.True(t, bytes.HasPrefix(png, pngMagic))

	decoded, err := scancode.Decode(v.ScanPayload)
	require.NoError(t, err)
	assert.Equal(t, v.ID, decoded.VehicleID)
	assert.Equal(t, v.Plate, decoded.Plate)
}

func TestCreateVehicleDuplicatePlate(t *testing.T) {
	env := newTestEnv(t)
	env.createVehicle(t, env.admin, "ABC-123")

	_, _, err := env.svc.CreateVehicle(context.Background(), env.admin, models.CreateVehicleRequest{
		Plate:    "abc-123",
		Category: "car",
	})
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestCreateVehicleEncoderFailurePersistsNothing(t *testing.T) {
	env := newTestEnvWithEncoder(t, failingEncoder{})
	ctx := context.Background()

	_, _, err := env.svc.CreateVehicle(ctx, env.admin, models.CreateVehicleRequest{Plate: "ABC-123", Category: "car"})
	assert.ErrorIs(t, err, models.ErrDependency)

	vehicles, err := env.svc.ListVehicles(ctx, env.admin, nil)
	require.NoError(t, err)
	assert.Empty(t, vehicles)
}

func TestCreateVehicleOwnership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.seedIdentity(t, "alice", models.RoleUser)
	bob := env.seedIdentity(t, "bob", models.RoleUser)

	_, _, err := env.svc.CreateVehicle(ctx, alice, models.CreateVehicleRequest{
		Plate: "AAA-111", Category: "car", OwnerID: &bob.ID,
	})
	assert.ErrorIs(t, err, models.ErrForbidden)

	v, _, err := env.svc.CreateVehicle(ctx, env.admin, models.CreateVehicleRequest{
		Plate: "AAA-111", Category: "car", OwnerID: &bob.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, bob.ID, v.OwnerID)

	_, _, err = env.svc.CreateVehicle(ctx, env.admin, models.CreateVehicleRequest{
		Plate: "BBB-222", Category: "car", OwnerID: ptr(int64(999)),
	})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestPlateChangeRegeneratesPayload(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	v := env.createVehicle(t, env.admin, "ABC-123")
	oldPayload := v.ScanPayload

	updated, err := env.svc.UpdateVehicle(ctx, env.admin, v.ID, models.UpdateVehicleRequest{Plate: ptr("xyz-789")})
	require.NoError(t, err)
	assert.Equal(t, "XYZ-789", updated.Plate)
	assert.Equal(t, fmt.Sprintf("VEHICLE:%d:XYZ-789", v.ID), updated.ScanPayload)

	// The old code no longer resolves
	_, err = env.svc.Scan(ctx, env.admin, models.ScanRequest{Payload: oldPayload})
	assert.ErrorIs(t, err, models.ErrMalformedScan)

	event := env.scan(t, env.admin, updated.ScanPayload)
	assert.Equal(t, models.DirectionIn, event.Direction)
}

func TestUpdateVehicleOwnerIsAdminOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.seedIdentity(t, "alice", models.RoleUser)
	bob := env.seedIdentity(t, "bob", models.RoleUser)
	v := env.createVehicle(t, alice, "AAA-111")

	_, err := env.svc.UpdateVehicle(ctx, alice, v.ID, models.UpdateVehicleRequest{OwnerID: &bob.ID})
	assert.ErrorIs(t, err, models.ErrForbidden)

	updated, err := env.svc.UpdateVehicle(ctx, alice, v.ID, models.UpdateVehicleRequest{Color: ptr("blue")})
	require.NoError(t, err)
	assert.Equal(t, "blue", *updated.Color)

	_, err = env.svc.UpdateVehicle(ctx, bob, v.ID, models.UpdateVehicleRequest{Color: ptr("green")})
	assert.ErrorIs(t, err, models.ErrForbidden)

	moved, err := env.svc.UpdateVehicle(ctx, env.admin, v.ID, models.UpdateVehicleRequest{OwnerID: &bob.ID})
	require.NoError(t, err)
	assert.Equal(t, bob.ID, moved.OwnerID)
	assert.Equal(t, bob.FullName, moved.OwnerName)
}

func TestNonAdminVehicleListingIsolation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.seedIdentity(t, "alice", models.RoleUser)
	bob := env.seedIdentity(t, "bob", models.RoleUser)
	env.createVehicle(t, alice, "AAA-111")
	env.createVehicle(t, alice, "AAA-222")
	bobs := env.createVehicle(t, bob, "BBB-111")

	vehicles, err := env.svc.ListVehicles(ctx, alice, nil)
	require.NoError(t, err)
	require.Len(t, vehicles, 2)
	for _, v := range vehicles {
		assert.Equal(t, alice.ID, v.OwnerID)
	}

	_, err = env.svc.ListVehicles(ctx, alice, &bob.ID)
	assert.ErrorIs(t, err, models.ErrForbidden)

	_, err = env.svc.GetVehicle(ctx, alice, bobs.ID)
	assert.ErrorIs(t, err, models.ErrForbidden)

	all, err := env.svc.ListVehicles(ctx, env.admin, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	byBob, err := env.svc.ListVehicles(ctx, env.admin, &bob.ID)
	require.NoError(t, err)
	assert.Len(t, byBob, 1)
}

func TestDeleteVehicleRemovesEvents(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.seedIdentity(t, "alice", models.RoleUser)
	v := env.createVehicle(t, alice, "AAA-111")
	env.scan(t, alice, v.ScanPayload)
	env.scan(t, alice, v.ScanPayload)

	_, err := env.svc.DeleteVehicle(ctx, env.seedIdentity(t, "bob", models.RoleUser), v.ID)
	assert.ErrorIs(t, err, models.ErrForbidden)

	result, err := env.svc.DeleteVehicle(ctx, alice, v.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.Events)
	assert.Empty(t, env.store.Events())

	_, err = env.svc.GetVehicle(ctx, alice, v.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestVehicleCode(t *testing.T) {
	env := newTestEnv(t)
	v := env.createVehicle(t, env.admin, "ABC-123")

	png, err := env.svc.VehicleCode(context.Background(), env.admin, v.ID)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, pngMagic))
}

func TestVehicleCodeEncoderFailureIsDependencyError(t *testing.T) {
	env := newTestEnv(t)
	v := env.createVehicle(t, env.admin, "ABC-123")
	env.svc.encoder = failingEncoder{}

	_, err := env.svc.VehicleCode(context.Background(), env.admin, v.ID)
	assert.ErrorIs(t, err, models.ErrDependency)
	assert.Contains(t, err.Error(), "encoder offline")
}
