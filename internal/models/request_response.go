package models

import "time"

// Request models
type LoginRequest struct {
	Login    string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type CreateIdentityRequest struct {
	Login    string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	FullName string `json:"full_name" binding:"required"`
	Role     Role   `json:"role"`
}

// UpdateIdentityRequest is a partial update; nil fields are left unchanged
type UpdateIdentityRequest struct {
	Email    *string `json:"email" binding:"omitempty,email"`
	FullName *string `json:"full_name"`
	Role     *Role   `json:"role"`
	Password *string `json:"password" binding:"omitempty,min=8"`
}

type CreateVehicleRequest struct {
	Plate    string  `json:"plate_number" binding:"required"`
	Category string  `json:"vehicle_type" binding:"required"`
	Make     *string `json:"make"`
	Model    *string `json:"model"`
	Color    *string `json:"color"`
	OwnerID  *int64  `json:"user_id"`
}

// UpdateVehicleRequest is a partial update; nil fields are left unchanged
type UpdateVehicleRequest struct {
	Plate    *string `json:"plate_number"`
	Category *string `json:"vehicle_type"`
	Make     *string `json:"make"`
	Model    *string `json:"model"`
	Color    *string `json:"color"`
	OwnerID  *int64  `json:"user_id"`
}

type ScanRequest struct {
	Payload  string  `json:"qr_data" binding:"required"`
	Location string  `json:"location"`
	Notes    *string `json:"notes"`
}

// ListEventsRequest is read from the page, per_page, type and vehicle_id
// query parameters
type ListEventsRequest struct {
	Page      int
	PerPage   int
	Direction *Direction
	VehicleID *int64
}

// Response models
type AuthResponse struct {
	Status      string    `json:"status"`
	AccessToken string    `json:"access_token,omitempty"`
	ExpiresIn   int       `json:"expires_in,omitempty"`
	User        *Identity `json:"user,omitempty"`
}

type IdentityResponse struct {
	Status string    `json:"status"`
	User   *Identity `json:"user"`
}

type IdentitiesResponse struct {
	Status string             `json:"status"`
	Users  []IdentityListItem `json:"users"`
}

type IdentityListItem struct {
	Identity
	VehicleCount int `db:"vehicle_count" json:"vehicle_count"`
}

type DeleteResponse struct {
	Status  string         `json:"status"`
	Message string         `json:"message"`
	Deleted *CascadeResult `json:"deleted,omitempty"`
}

type VehicleResponse struct {
	Status  string       `json:"status"`
	Vehicle *VehicleView `json:"vehicle"`
	QRCode  string       `json:"qr_code,omitempty"` // data:image/png;base64 URL
}

type VehiclesResponse struct {
	Status   string        `json:"status"`
	Vehicles []VehicleView `json:"vehicles"`
}

type ScanResponse struct {
	Status  string     `json:"status"`
	Message string     `json:"message"`
	Entry   *EventView `json:"entry"`
}

type EventsResponse struct {
	Status      string      `json:"status"`
	Entries     []EventView `json:"entries"`
	Total       int64       `json:"total"`
	Pages       int         `json:"pages"`
	CurrentPage int         `json:"current_page"`
}

type StatsResponse struct {
	Status string `json:"status"`
	Stats  *Stats `json:"stats"`
}

type MessageResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type HealthResponse struct {
	Message string    `json:"message"`
	Status  string    `json:"status"`
	Version string    `json:"version"`
	Time    time.Time `json:"time"`
}

type ErrorResponse struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
