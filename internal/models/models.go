package models

import (
	"time"
)

// Role is the coarse permission level of an identity
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// IsValidRole checks if a role is one of the known roles
func IsValidRole(role Role) bool {
	switch role {
	case RoleAdmin, RoleUser:
		return true
	default:
		return false
	}
}

// Direction is the kind of gate crossing recorded by an access event
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// IsValidDirection checks if d is IN or OUT
func IsValidDirection(d Direction) bool {
	return d == DirectionIn || d == DirectionOut
}

// Identity represents a user account of the gate system
type Identity struct {
	ID                   int64     `db:"id" json:"id"`
	Login                string    `db:"login" json:"username"`
	Email                string    `db:"email" json:"email"`
	PasswordHash         string    `db:"password_hash" json:"-"` // never returned
	FullName             string    `db:"full_name" json:"full_name"`
	Role                 Role      `db:"role" json:"role"`
	MustChangeCredential bool      `db:"must_change_credential" json:"must_change_password"`
	CreatedAt            time.Time `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time `db:"updated_at" json:"updated_at"`
}

// IsAdmin reports whether the identity holds the admin role
func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == RoleAdmin
}

// Vehicle represents a registered vehicle bound to its owning identity
type Vehicle struct {
	ID          int64     `db:"id" json:"id"`
	Plate       string    `db:"plate" json:"plate_number"`
	Category    string    `db:"category" json:"vehicle_type"`
	Make        *string   `db:"make" json:"make"`
	Model       *string   `db:"model" json:"model"`
	Color       *string   `db:"color" json:"color"`
	ScanPayload string    `db:"scan_payload" json:"qr_data"`
	OwnerID     int64     `db:"owner_id" json:"user_id"`
	Inside      bool      `db:"inside" json:"inside"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// VehicleView is a vehicle joined with its owner's display name
type VehicleView struct {
	Vehicle
	OwnerName string `db:"owner_name" json:"owner_name"`
}

// AccessEvent is a single entry in the append-only access ledger
type AccessEvent struct {
	ID         int64     `db:"id" json:"id"`
	VehicleID  int64     `db:"vehicle_id" json:"vehicle_id"`
	Direction  Direction `db:"direction" json:"entry_type"`
	Timestamp  time.Time `db:"timestamp" json:"timestamp"`
	Location   string    `db:"location" json:"location"`
	Notes      *string   `db:"notes" json:"notes"`
	RecordedBy *int64    `db:"recorded_by" json:"recorded_by,omitempty"`
}

// EventView is an access event with denormalised vehicle and owner fields
type EventView struct {
	AccessEvent
	Plate     string `db:"plate" json:"plate_number"`
	Category  string `db:"category" json:"vehicle_type"`
	OwnerID   int64  `db:"owner_id" json:"user_id"`
	OwnerName string `db:"owner_name" json:"owner_name"`
}

// EventFilter narrows a ledger listing. OwnerID is the policy scope and is
// never taken from the caller directly.
type EventFilter struct {
	OwnerID   *int64
	VehicleID *int64
	Direction *Direction
	Limit     int
	Offset    int
}

// CascadeResult reports what an orchestrated delete removed
type CascadeResult struct {
	Vehicles int64 `json:"vehicles_deleted"`
	Events   int64 `json:"events_deleted"`
}

// Stats is the scoped ledger summary
type Stats struct {
	TotalEntries   int64     `db:"total_entries" json:"total_entries"`
	EntriesIn      int64     `db:"entries_in" json:"entries_in"`
	EntriesOut     int64     `db:"entries_out" json:"entries_out"`
	TodayEntries   int64     `db:"today_entries" json:"today_entries"`
	VehiclesInside int64     `db:"vehicles_inside" json:"vehicles_inside"`
	TotalVehicles  int64     `db:"total_vehicles" json:"total_vehicles"`
	DayStart       time.Time `db:"-" json:"day_start"`
	DayEnd         time.Time `db:"-" json:"day_end"`
	Timezone       string    `db:"-" json:"timezone"`
}
