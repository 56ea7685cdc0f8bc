package repository

import (
	"context"
	"time"

	"github.com/fzkn4/gate-security/internal/models"
)

// ScanDecider computes the event to append for a vehicle given its latest
// event (nil when the vehicle has none). It runs while the vehicle is locked.
type ScanDecider func(vehicle *models.Vehicle, last *models.AccessEvent) (*models.AccessEvent, error)

// Repository interface defines the methods that any repository implementation must satisfy.
// Callbacks passed to mutating methods run inside the same transaction as the
// write, against the locked current row; an error from a callback aborts the
// write and is returned unchanged.
type Repository interface {
	// Identity operations
	CreateIdentity(ctx context.Context, identity *models.Identity) error
	GetIdentityByID(ctx context.Context, id int64) (*models.Identity, error)
	GetIdentityByLogin(ctx context.Context, login string) (*models.Identity, error)
	ListIdentities(ctx context.Context, ownerID *int64) ([]models.IdentityListItem, error)
	UpdateIdentity(ctx context.Context, id int64, mutate func(*models.Identity) error) (*models.Identity, error)
	DeleteIdentity(ctx context.Context, id int64, check func(*models.Identity) error) (*models.CascadeResult, error)
	CountAdmins(ctx context.Context) (int64, error)

	// Vehicle operations
	CreateVehicle(ctx context.Context, vehicle *models.Vehicle, stamp func(*models.Vehicle) error) error
	GetVehicle(ctx context.Context, id int64) (*models.VehicleView, error)
	ListVehicles(ctx context.Context, ownerID *int64) ([]models.VehicleView, error)
	UpdateVehicle(ctx context.Context, id int64, mutate func(*models.Vehicle) error) (*models.VehicleView, error)
	DeleteVehicle(ctx context.Context, id int64, check func(*models.Vehicle) error) (*models.CascadeResult, error)

	// Access ledger operations
	RecordScan(ctx context.Context, vehicleID int64, decide ScanDecider) (*models.EventView, error)
	ListEvents(ctx context.Context, filter models.EventFilter) ([]models.EventView, int64, error)
	Stats(ctx context.Context, ownerID *int64, dayStart, dayEnd time.Time) (*models.Stats, error)
}
