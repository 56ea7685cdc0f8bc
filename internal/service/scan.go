package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/fzkn4/gate-security/internal/models"
	"github.com/fzkn4/gate-security/internal/policy"
	"github.com/fzkn4/gate-security/internal/scancode"
	"github.com/sirupsen/logrus"
)

// nextDirection toggles the vehicle's last recorded direction. A vehicle with
// no history enters first.
func nextDirection(last *models.AccessEvent) models.Direction {
	if last == nil || last.Direction == models.DirectionOut {
		return models.DirectionIn
	}
	return models.DirectionOut
}

// Scan resolves a scanned payload to a vehicle and appends the next access
// event for it. Reading the latest event and appending happen under the
// vehicle's lock, so concurrent scans of one vehicle always alternate.
func (s *DefaultService) Scan(ctx context.Context, actor *models.Identity, req models.ScanRequest) (*models.EventView, error) {
	payload, err := scancode.Decode(req.Payload)
	if err != nil {
		return nil, err
	}

	location := strings.TrimSpace(req.Location)
	if location == "" {
		location = s.defaultLocation
	}

	event, err := s.repo.RecordScan(ctx, payload.VehicleID, func(v *models.Vehicle, last *models.AccessEvent) (*models.AccessEvent, error) {
		if err := policy.Authorize(actor, policy.KindAccessEvent, v.OwnerID, policy.OpCreate); err != nil {
			return nil, err
		}
		if payload.Plate != "" && strings.ToUpper(strings.TrimSpace(payload.Plate)) != v.Plate {
			return nil, fmt.Errorf("%w: code was issued for a previous plate number", models.ErrMalformedScan)
		}

		ts := s.now().UTC()
		// Keep the new event the most recent under (timestamp, id) ordering
		if last != nil && ts.Before(last.Timestamp) {
			ts = last.Timestamp
		}

		recordedBy := actor.ID
		return &models.AccessEvent{
			VehicleID:  v.ID,
			Direction:  nextDirection(last),
			Timestamp:  ts,
			Location:   location,
			Notes:      req.Notes,
			RecordedBy: &recordedBy,
		}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("error recording scan: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"vehicle_id": event.VehicleID,
		"plate":      event.Plate,
		"direction":  event.Direction,
		"location":   event.Location,
		"scanned_by": actor.ID,
	}).Info("access event recorded")

	return event, nil
}
