// Package memory provides an in-process Repository used by tests and by
// STORE=memory development runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fzkn4/gate-security/internal/models"
	"github.com/fzkn4/gate-security/internal/repository"
)

// Store keeps every table in maps guarded by one mutex. Callbacks run with
// the lock held against copies of the current rows, so a failed callback
// leaves the store untouched.
type Store struct {
	mu sync.RWMutex

	identities map[int64]models.Identity
	vehicles   map[int64]models.Vehicle
	events     []models.AccessEvent

	nextIdentity int64
	nextVehicle  int64
	nextEvent    int64
}

var _ repository.Repository = (*Store)(nil)

func New() *Store {
	return &Store{
		identities: make(map[int64]models.Identity),
		vehicles:   make(map[int64]models.Vehicle),
	}
}

// Events returns a copy of all recorded events in insertion order. Test-only helper.
func (s *Store) Events() []models.AccessEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.AccessEvent, len(s.events))
	copy(out, s.events)
	return out
}

func (s *Store) CreateIdentity(_ context.Context, identity *models.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkIdentityUnique(identity, 0); err != nil {
		return err
	}

	s.nextIdentity++
	now := time.Now().UTC()
	identity.ID = s.nextIdentity
	identity.CreatedAt = now
	identity.UpdatedAt = now
	s.identities[identity.ID] = *identity
	return nil
}

func (s *Store) GetIdentityByID(_ context.Context, id int64) (*models.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	identity, ok := s.identities[id]
	if !ok {
		return nil, fmt.Errorf("%w: identity %d", models.ErrNotFound, id)
	}
	return &identity, nil
}

func (s *Store) GetIdentityByLogin(_ context.Context, login string) (*models.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, identity := range s.identities {
		if identity.Login == login {
			return &identity, nil
		}
	}
	return nil, fmt.Errorf("%w: identity %q", models.ErrNotFound, login)
}

func (s *Store) ListIdentities(_ context.Context, ownerID *int64) ([]models.IdentityListItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[int64]int)
	for _, v := range s.vehicles {
		counts[v.OwnerID]++
	}

	out := []models.IdentityListItem{}
	for _, identity := range s.identities {
		if ownerID != nil && identity.ID != *ownerID {
			continue
		}
		out = append(out, models.IdentityListItem{Identity: identity, VehicleCount: counts[identity.ID]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UpdateIdentity(
	_ context.Context,
	id int64,
	mutate func(*models.Identity) error,
) (*models.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	identity, ok := s.identities[id]
	if !ok {
		return nil, fmt.Errorf("%w: identity %d", models.ErrNotFound, id)
	}
	if err := mutate(&identity); err != nil {
		return nil, err
	}
	identity.ID = id
	if err := s.checkIdentityUnique(&identity, id); err != nil {
		return nil, err
	}

	identity.UpdatedAt = time.Now().UTC()
	s.identities[id] = identity
	return &identity, nil
}

func (s *Store) DeleteIdentity(
	_ context.Context,
	id int64,
	check func(*models.Identity) error,
) (*models.CascadeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	identity, ok := s.identities[id]
	if !ok {
		return nil, fmt.Errorf("%w: identity %d", models.ErrNotFound, id)
	}
	if err := check(&identity); err != nil {
		return nil, err
	}

	owned := make(map[int64]bool)
	for vid, v := range s.vehicles {
		if v.OwnerID == id {
			owned[vid] = true
		}
	}

	result := &models.CascadeResult{Vehicles: int64(len(owned))}
	kept := s.events[:0]
	for _, e := range s.events {
		if owned[e.VehicleID] {
			result.Events++
			continue
		}
		if e.RecordedBy != nil && *e.RecordedBy == id {
			e.RecordedBy = nil
		}
		kept = append(kept, e)
	}
	s.events = kept

	for vid := range owned {
		delete(s.vehicles, vid)
	}
	delete(s.identities, id)
	return result, nil
}

func (s *Store) CountAdmins(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, identity := range s.identities {
		if identity.Role == models.RoleAdmin {
			n++
		}
	}
	return n, nil
}

func (s *Store) CreateVehicle(_ context.Context, vehicle *models.Vehicle, stamp func(*models.Vehicle) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.identities[vehicle.OwnerID]; !ok {
		return fmt.Errorf("%w: owner %d", models.ErrNotFound, vehicle.OwnerID)
	}

	candidate := *vehicle
	candidate.ID = s.nextVehicle + 1
	now := time.Now().UTC()
	candidate.CreatedAt = now
	candidate.UpdatedAt = now
	candidate.Inside = false

	if err := stamp(&candidate); err != nil {
		return err
	}
	if err := s.checkVehicleUnique(&candidate, 0); err != nil {
		return err
	}

	s.nextVehicle = candidate.ID
	s.vehicles[candidate.ID] = candidate
	*vehicle = candidate
	return nil
}

func (s *Store) GetVehicle(_ context.Context, id int64) (*models.VehicleView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.vehicles[id]
	if !ok {
		return nil, fmt.Errorf("%w: vehicle %d", models.ErrNotFound, id)
	}
	view := s.vehicleView(v)
	return &view, nil
}

func (s *Store) ListVehicles(_ context.Context, ownerID *int64) ([]models.VehicleView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.VehicleView{}
	for _, v := range s.vehicles {
		if ownerID != nil && v.OwnerID != *ownerID {
			continue
		}
		out = append(out, s.vehicleView(v))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UpdateVehicle(
	_ context.Context,
	id int64,
	mutate func(*models.Vehicle) error,
) (*models.VehicleView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.vehicles[id]
	if !ok {
		return nil, fmt.Errorf("%w: vehicle %d", models.ErrNotFound, id)
	}
	if err := mutate(&v); err != nil {
		return nil, err
	}
	v.ID = id
	if _, ok := s.identities[v.OwnerID]; !ok {
		return nil, fmt.Errorf("%w: owner %d", models.ErrNotFound, v.OwnerID)
	}
	if err := s.checkVehicleUnique(&v, id); err != nil {
		return nil, err
	}

	v.UpdatedAt = time.Now().UTC()
	s.vehicles[id] = v
	view := s.vehicleView(v)
	return &view, nil
}

func (s *Store) DeleteVehicle(
	_ context.Context,
	id int64,
	check func(*models.Vehicle) error,
) (*models.CascadeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.vehicles[id]
	if !ok {
		return nil, fmt.Errorf("%w: vehicle %d", models.ErrNotFound, id)
	}
	if err := check(&v); err != nil {
		return nil, err
	}

	result := &models.CascadeResult{Vehicles: 1}
	kept := s.events[:0]
	for _, e := range s.events {
		if e.VehicleID == id {
			result.Events++
			continue
		}
		kept = append(kept, e)
	}
	s.events = kept
	delete(s.vehicles, id)
	return result, nil
}

func (s *Store) RecordScan(_ context.Context, vehicleID int64, decide repository.ScanDecider) (*models.EventView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.vehicles[vehicleID]
	if !ok {
		return nil, fmt.Errorf("%w: vehicle %d", models.ErrNotFound, vehicleID)
	}

	var last *models.AccessEvent
	for i := range s.events {
		e := s.events[i]
		if e.VehicleID != vehicleID {
			continue
		}
		if last == nil || newer(e, *last) {
			last = &e
		}
	}

	event, err := decide(&v, last)
	if err != nil {
		return nil, err
	}

	s.nextEvent++
	event.ID = s.nextEvent
	event.VehicleID = vehicleID
	s.events = append(s.events, *event)

	v.Inside = event.Direction == models.DirectionIn
	s.vehicles[vehicleID] = v

	view := s.eventView(*event)
	return &view, nil
}

func (s *Store) ListEvents(_ context.Context, filter models.EventFilter) ([]models.EventView, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := []models.AccessEvent{}
	for _, e := range s.events {
		v := s.vehicles[e.VehicleID]
		if filter.OwnerID != nil && v.OwnerID != *filter.OwnerID {
			continue
		}
		if filter.VehicleID != nil && e.VehicleID != *filter.VehicleID {
			continue
		}
		if filter.Direction != nil && e.Direction != *filter.Direction {
			continue
		}
		matched = append(matched, e)
	}
	sort.Slice(matched, func(i, j int) bool { return newer(matched[i], matched[j]) })

	total := int64(len(matched))
	start := min(max(filter.Offset, 0), len(matched))
	end := len(matched)
	if filter.Limit > 0 {
		end = min(start+filter.Limit, len(matched))
	}

	out := make([]models.EventView, 0, end-start)
	for _, e := range matched[start:end] {
		out = append(out, s.eventView(e))
	}
	return out, total, nil
}

func (s *Store) Stats(_ context.Context, ownerID *int64, dayStart, dayEnd time.Time) (*models.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &models.Stats{}
	for _, v := range s.vehicles {
		if ownerID != nil && v.OwnerID != *ownerID {
			continue
		}
		stats.TotalVehicles++
		if v.Inside {
			stats.VehiclesInside++
		}
	}

	for _, e := range s.events {
		if ownerID != nil && s.vehicles[e.VehicleID].OwnerID != *ownerID {
			continue
		}
		stats.TotalEntries++
		switch e.Direction {
		case models.DirectionIn:
			stats.EntriesIn++
		case models.DirectionOut:
			stats.EntriesOut++
		}
		if !e.Timestamp.Before(dayStart) && e.Timestamp.Before(dayEnd) {
			stats.TodayEntries++
		}
	}
	return stats, nil
}

// newer orders events by timestamp then id, most recent first
func newer(a, b models.AccessEvent) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.After(b.Timestamp)
	}
	return a.ID > b.ID
}

func (s *Store) checkIdentityUnique(identity *models.Identity, self int64) error {
	for id, other := range s.identities {
		if id == self {
			continue
		}
		if other.Login == identity.Login {
			return fmt.Errorf("%w: username already exists", models.ErrConflict)
		}
		if other.Email == identity.Email {
			return fmt.Errorf("%w: email already exists", models.ErrConflict)
		}
	}
	return nil
}

func (s *Store) checkVehicleUnique(vehicle *models.Vehicle, self int64) error {
	for id, other := range s.vehicles {
		if id == self {
			continue
		}
		if other.Plate == vehicle.Plate {
			return fmt.Errorf("%w: plate number already registered", models.ErrConflict)
		}
		if other.ScanPayload == vehicle.ScanPayload {
			return fmt.Errorf("%w: scan code already issued", models.ErrConflict)
		}
	}
	return nil
}

func (s *Store) vehicleView(v models.Vehicle) models.VehicleView {
	return models.VehicleView{Vehicle: v, OwnerName: s.identities[v.OwnerID].FullName}
}

func (s *Store) eventView(e models.AccessEvent) models.EventView {
	v := s.vehicles[e.VehicleID]
	return models.EventView{
		AccessEvent: e,
		Plate:       v.Plate,
		Category:    v.Category,
		OwnerID:     v.OwnerID,
		OwnerName:   s.identities[v.OwnerID].FullName,
	}
}
