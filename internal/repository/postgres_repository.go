package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fzkn4/gate-security/internal/models"
	"github.com/jmoiron/sqlx"
)

const (
	vehicleViewColumns = `
		v.id, v.plate, v.category, v.make, v.model, v.color, v.scan_payload,
		v.owner_id, v.inside, v.created_at, v.updated_at, i.full_name AS owner_name`

	eventViewColumns = `
		e.id, e.vehicle_id, e.direction, e."timestamp", e.location, e.notes, e.recorded_by,
		v.plate, v.category, v.owner_id, i.full_name AS owner_name`

	// lastEventQuery orders by timestamp with the id as tie-break.
	lastEventQuery = `
		SELECT id, vehicle_id, direction, "timestamp", location, notes, recorded_by
		FROM access_events
		WHERE vehicle_id = $1
		ORDER BY "timestamp" DESC, id DESC
		LIMIT 1`
)

// PostgresRepository implements the Repository interface using PostgreSQL
type PostgresRepository struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewPostgresRepository creates a new PostgreSQL repository. Every operation
// is bounded by timeout.
func NewPostgresRepository(db *sqlx.DB, timeout time.Duration) *PostgresRepository {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &PostgresRepository{
		db:      db,
		timeout: timeout,
	}
}

func (r *PostgresRepository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

// inTx runs fn in a transaction that is rolled back if fn fails
func (r *PostgresRepository) inTx(ctx context.Context, op string, fn func(ctx context.Context, tx *sqlx.Tx) error) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return mapError(op, err)
	}

	if err := fn(ctx, tx); err != nil {
		_ = tx.Rollback()
		return mapError(op, err)
	}

	return mapError(op, tx.Commit())
}

// Identity repository methods
func (r *PostgresRepository) CreateIdentity(ctx context.Context, identity *models.Identity) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO identities (login, email, password_hash, full_name, role, must_change_credential, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	now := time.Now().UTC()
	identity.CreatedAt = now
	identity.UpdatedAt = now

	err := r.db.QueryRowxContext(ctx, query,
		identity.Login, identity.Email, identity.PasswordHash, identity.FullName,
		identity.Role, identity.MustChangeCredential, identity.CreatedAt, identity.UpdatedAt,
	).Scan(&identity.ID)

	return mapError("create identity", err)
}

func (r *PostgresRepository) GetIdentityByID(ctx context.Context, id int64) (*models.Identity, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var identity models.Identity
	err := r.db.GetContext(ctx, &identity, `SELECT * FROM identities WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: identity %d", models.ErrNotFound, id)
		}
		return nil, mapError("get identity", err)
	}

	return &identity, nil
}

func (r *PostgresRepository) GetIdentityByLogin(ctx context.Context, login string) (*models.Identity, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var identity models.Identity
	err := r.db.GetContext(ctx, &identity, `SELECT * FROM identities WHERE login = $1`, login)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: identity %q", models.ErrNotFound, login)
		}
		return nil, mapError("get identity by login", err)
	}

	return &identity, nil
}

func (r *PostgresRepository) ListIdentities(ctx context.Context, ownerID *int64) ([]models.IdentityListItem, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		SELECT i.*, COUNT(v.id) AS vehicle_count
		FROM identities i
		LEFT JOIN vehicles v ON v.owner_id = i.id
		WHERE ($1::bigint IS NULL OR i.id = $1)
		GROUP BY i.id
		ORDER BY i.id
	`

	identities := []models.IdentityListItem{}
	if err := r.db.SelectContext(ctx, &identities, query, ownerID); err != nil {
		return nil, mapError("list identities", err)
	}

	return identities, nil
}

func (r *PostgresRepository) UpdateIdentity(
	ctx context.Context,
	id int64,
	mutate func(*models.Identity) error,
) (*models.Identity, error) {
	var identity models.Identity

	err := r.inTx(ctx, "update identity", func(ctx context.Context, tx *sqlx.Tx) error {
		if err := lockIdentity(ctx, tx, id, &identity); err != nil {
			return err
		}

		if err := mutate(&identity); err != nil {
			return err
		}
		identity.ID = id
		identity.UpdatedAt = time.Now().UTC()

		_, err := tx.ExecContext(ctx, `
			UPDATE identities
			SET login = $1, email = $2, password_hash = $3, full_name = $4, role = $5,
			    must_change_credential = $6, updated_at = $7
			WHERE id = $8
		`,
			identity.Login, identity.Email, identity.PasswordHash, identity.FullName,
			identity.Role, identity.MustChangeCredential, identity.UpdatedAt, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &identity, nil
}

// DeleteIdentity removes the identity, the vehicles it owns and their access
// events in one transaction. Events the identity recorded on other vehicles
// keep their rows with recorded_by cleared.
func (r *PostgresRepository) DeleteIdentity(
	ctx context.Context,
	id int64,
	check func(*models.Identity) error,
) (*models.CascadeResult, error) {
	result := &models.CascadeResult{}

	err := r.inTx(ctx, "delete identity", func(ctx context.Context, tx *sqlx.Tx) error {
		var identity models.Identity
		if err := lockIdentity(ctx, tx, id, &identity); err != nil {
			return err
		}
		if err := check(&identity); err != nil {
			return err
		}

		// Lock owned vehicles so no scan can append to them mid-cascade
		if _, err := tx.ExecContext(ctx, `SELECT id FROM vehicles WHERE owner_id = $1 FOR UPDATE`, id); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `
			DELETE FROM access_events
			WHERE vehicle_id IN (SELECT id FROM vehicles WHERE owner_id = $1)
		`, id)
		if err != nil {
			return err
		}
		if result.Events, err = res.RowsAffected(); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `UPDATE access_events SET recorded_by = NULL WHERE recorded_by = $1`, id); err != nil {
			return err
		}

		res, err = tx.ExecContext(ctx, `DELETE FROM vehicles WHERE owner_id = $1`, id)
		if err != nil {
			return err
		}
		if result.Vehicles, err = res.RowsAffected(); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `DELETE FROM identities WHERE id = $1`, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PostgresRepository) CountAdmins(ctx context.Context) (int64, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var count int64
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM identities WHERE role = $1`, models.RoleAdmin)
	return count, mapError("count admins", err)
}

// Vehicle repository methods

// CreateVehicle pre-allocates the vehicle id from its sequence so stamp can
// derive the scan payload before the single insert.
func (r *PostgresRepository) CreateVehicle(
	ctx context.Context,
	vehicle *models.Vehicle,
	stamp func(*models.Vehicle) error,
) error {
	return r.inTx(ctx, "create vehicle", func(ctx context.Context, tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &vehicle.ID, `SELECT nextval(pg_get_serial_sequence('vehicles', 'id'))`)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		vehicle.CreatedAt = now
		vehicle.UpdatedAt = now
		vehicle.Inside = false

		if err := stamp(vehicle); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO vehicles (id, plate, category, make, model, color, scan_payload, owner_id, inside, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`,
			vehicle.ID, vehicle.Plate, vehicle.Category, vehicle.Make, vehicle.Model, vehicle.Color,
			vehicle.ScanPayload, vehicle.OwnerID, vehicle.Inside, vehicle.CreatedAt, vehicle.UpdatedAt)
		return err
	})
}

func (r *PostgresRepository) GetVehicle(ctx context.Context, id int64) (*models.VehicleView, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var vehicle models.VehicleView
	err := r.db.GetContext(ctx, &vehicle, `
		SELECT `+vehicleViewColumns+`
		FROM vehicles v JOIN identities i ON i.id = v.owner_id
		WHERE v.id = $1
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: vehicle %d", models.ErrNotFound, id)
		}
		return nil, mapError("get vehicle", err)
	}

	return &vehicle, nil
}

func (r *PostgresRepository) ListVehicles(ctx context.Context, ownerID *int64) ([]models.VehicleView, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	vehicles := []models.VehicleView{}
	err := r.db.SelectContext(ctx, &vehicles, `
		SELECT `+vehicleViewColumns+`
		FROM vehicles v JOIN identities i ON i.id = v.owner_id
		WHERE ($1::bigint IS NULL OR v.owner_id = $1)
		ORDER BY v.id
	`, ownerID)
	if err != nil {
		return nil, mapError("list vehicles", err)
	}

	return vehicles, nil
}

func (r *PostgresRepository) UpdateVehicle(
	ctx context.Context,
	id int64,
	mutate func(*models.Vehicle) error,
) (*models.VehicleView, error) {
	var view models.VehicleView

	err := r.inTx(ctx, "update vehicle", func(ctx context.Context, tx *sqlx.Tx) error {
		vehicle := &view.Vehicle
		if err := lockVehicle(ctx, tx, id, vehicle); err != nil {
			return err
		}

		if err := mutate(vehicle); err != nil {
			return err
		}
		vehicle.ID = id
		vehicle.UpdatedAt = time.Now().UTC()

		_, err := tx.ExecContext(ctx, `
			UPDATE vehicles
			SET plate = $1, category = $2, make = $3, model = $4, color = $5,
			    scan_payload = $6, owner_id = $7, updated_at = $8
			WHERE id = $9
		`,
			vehicle.Plate, vehicle.Category, vehicle.Make, vehicle.Model, vehicle.Color,
			vehicle.ScanPayload, vehicle.OwnerID, vehicle.UpdatedAt, id)
		if err != nil {
			return err
		}

		return tx.GetContext(ctx, &view.OwnerName, `SELECT full_name FROM identities WHERE id = $1`, vehicle.OwnerID)
	})
	if err != nil {
		return nil, err
	}

	return &view, nil
}

func (r *PostgresRepository) DeleteVehicle(
	ctx context.Context,
	id int64,
	check func(*models.Vehicle) error,
) (*models.CascadeResult, error) {
	result := &models.CascadeResult{}

	err := r.inTx(ctx, "delete vehicle", func(ctx context.Context, tx *sqlx.Tx) error {
		var vehicle models.Vehicle
		if err := lockVehicle(ctx, tx, id, &vehicle); err != nil {
			return err
		}
		if err := check(&vehicle); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM access_events WHERE vehicle_id = $1`, id)
		if err != nil {
			return err
		}
		if result.Events, err = res.RowsAffected(); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM vehicles WHERE id = $1`, id); err != nil {
			return err
		}
		result.Vehicles = 1
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// Access ledger repository methods

// RecordScan serialises scans of one vehicle on its row lock. A transaction
// aborted by a serialization failure or deadlock is run once more before the
// error is surfaced as transient.
func (r *PostgresRepository) RecordScan(
	ctx context.Context,
	vehicleID int64,
	decide ScanDecider,
) (*models.EventView, error) {
	view, err := r.recordScan(ctx, vehicleID, decide)
	if err != nil && isSerializationFailure(err) {
		view, err = r.recordScan(ctx, vehicleID, decide)
	}
	return view, err
}

func (r *PostgresRepository) recordScan(
	ctx context.Context,
	vehicleID int64,
	decide ScanDecider,
) (*models.EventView, error) {
	var view models.EventView

	err := r.inTx(ctx, "record scan", func(ctx context.Context, tx *sqlx.Tx) error {
		var vehicle models.Vehicle
		if err := lockVehicle(ctx, tx, vehicleID, &vehicle); err != nil {
			return err
		}

		var last *models.AccessEvent
		var latest models.AccessEvent
		err := tx.GetContext(ctx, &latest, lastEventQuery, vehicleID)
		switch {
		case err == nil:
			last = &latest
		case errors.Is(err, sql.ErrNoRows):
		default:
			return err
		}

		event, err := decide(&vehicle, last)
		if err != nil {
			return err
		}
		event.VehicleID = vehicle.ID

		err = tx.QueryRowxContext(ctx, `
			INSERT INTO access_events (vehicle_id, direction, "timestamp", location, notes, recorded_by)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`, event.VehicleID, event.Direction, event.Timestamp, event.Location, event.Notes, event.RecordedBy,
		).Scan(&event.ID)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `UPDATE vehicles SET inside = $1 WHERE id = $2`,
			event.Direction == models.DirectionIn, vehicle.ID)
		if err != nil {
			return err
		}

		view.AccessEvent = *event
		view.Plate = vehicle.Plate
		view.Category = vehicle.Category
		view.OwnerID = vehicle.OwnerID
		return tx.GetContext(ctx, &view.OwnerName, `SELECT full_name FROM identities WHERE id = $1`, vehicle.OwnerID)
	})
	if err != nil {
		return nil, err
	}

	return &view, nil
}

func (r *PostgresRepository) ListEvents(ctx context.Context, filter models.EventFilter) ([]models.EventView, int64, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	where := `
		FROM access_events e
		JOIN vehicles v ON v.id = e.vehicle_id
		JOIN identities i ON i.id = v.owner_id
		WHERE ($1::bigint IS NULL OR v.owner_id = $1)
		  AND ($2::bigint IS NULL OR e.vehicle_id = $2)
		  AND ($3::text IS NULL OR e.direction = $3)
	`

	var direction *string
	if filter.Direction != nil {
		d := string(*filter.Direction)
		direction = &d
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) `+where,
		filter.OwnerID, filter.VehicleID, direction); err != nil {
		return nil, 0, mapError("count events", err)
	}

	events := []models.EventView{}
	err := r.db.SelectContext(ctx, &events, `
		SELECT `+eventViewColumns+where+`
		ORDER BY e."timestamp" DESC, e.id DESC
		LIMIT $4 OFFSET $5
	`, filter.OwnerID, filter.VehicleID, direction, filter.Limit, filter.Offset)
	if err != nil {
		return nil, 0, mapError("list events", err)
	}

	return events, total, nil
}

// Stats counts events in [dayStart, dayEnd) as today's entries and reads
// occupancy from the materialised inside flag.
func (r *PostgresRepository) Stats(ctx context.Context, ownerID *int64, dayStart, dayEnd time.Time) (*models.Stats, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	var stats models.Stats
	err := r.db.GetContext(ctx, &stats, `
		SELECT
			COUNT(e.id) AS total_entries,
			COUNT(e.id) FILTER (WHERE e.direction = 'in') AS entries_in,
			COUNT(e.id) FILTER (WHERE e.direction = 'out') AS entries_out,
			COUNT(e.id) FILTER (WHERE e."timestamp" >= $2 AND e."timestamp" < $3) AS today_entries
		FROM access_events e
		JOIN vehicles v ON v.id = e.vehicle_id
		WHERE ($1::bigint IS NULL OR v.owner_id = $1)
	`, ownerID, dayStart, dayEnd)
	if err != nil {
		return nil, mapError("event stats", err)
	}

	var occupancy struct {
		Total  int64 `db:"total_vehicles"`
		Inside int64 `db:"vehicles_inside"`
	}
	err = r.db.GetContext(ctx, &occupancy, `
		SELECT COUNT(*) AS total_vehicles, COUNT(*) FILTER (WHERE inside) AS vehicles_inside
		FROM vehicles
		WHERE ($1::bigint IS NULL OR owner_id = $1)
	`, ownerID)
	if err != nil {
		return nil, mapError("vehicle stats", err)
	}

	stats.TotalVehicles = occupancy.Total
	stats.VehiclesInside = occupancy.Inside
	return &stats, nil
}

// lockIdentity reads an identity row FOR UPDATE
func lockIdentity(ctx context.Context, tx *sqlx.Tx, id int64, identity *models.Identity) error {
	err := tx.GetContext(ctx, identity, `SELECT * FROM identities WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: identity %d", models.ErrNotFound, id)
	}
	return err
}

// lockVehicle reads a vehicle row FOR UPDATE
func lockVehicle(ctx context.Context, tx *sqlx.Tx, id int64, vehicle *models.Vehicle) error {
	err := tx.GetContext(ctx, vehicle, `SELECT * FROM vehicles WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: vehicle %d", models.ErrNotFound, id)
	}
	return err
}
