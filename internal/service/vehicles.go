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

// normalizePlate trims and upper-cases a plate so lookups and uniqueness do
// not depend on how it was typed
func normalizePlate(plate string) (string, error) {
	plate = strings.ToUpper(strings.TrimSpace(plate))
	if plate == "" {
		return "", fmt.Errorf("%w: plate number is required", models.ErrInvalidInput)
	}
	return plate, nil
}

func normalizeCategory(category string) (string, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return "", fmt.Errorf("%w: vehicle type is required", models.ErrInvalidInput)
	}
	return category, nil
}

// CreateVehicle registers a vehicle and issues its scan code. The returned
// PNG is the code image rendered before the vehicle was committed.
func (s *DefaultService) CreateVehicle(
	ctx context.Context,
	actor *models.Identity,
	req models.CreateVehicleRequest,
) (*models.VehicleView, []byte, error) {
	if actor == nil {
		return nil, nil, fmt.Errorf("%w: no identity", models.ErrForbidden)
	}

	ownerID := actor.ID
	if req.OwnerID != nil {
		ownerID = *req.OwnerID
	}
	if err := policy.Authorize(actor, policy.KindVehicle, ownerID, policy.OpCreate); err != nil {
		return nil, nil, err
	}

	plate, err := normalizePlate(req.Plate)
	if err != nil {
		return nil, nil, err
	}
	category, err := normalizeCategory(req.Category)
	if err != nil {
		return nil, nil, err
	}

	owner, err := s.repo.GetIdentityByID(ctx, ownerID)
	if err != nil {
		return nil, nil, fmt.Errorf("error getting owner: %w", err)
	}

	vehicle := &models.Vehicle{
		Plate:    plate,
		Category: category,
		Make:     req.Make,
		Model:    req.Model,
		Color:    req.Color,
		OwnerID:  owner.ID,
	}

	var png []byte
	err = s.repo.CreateVehicle(ctx, vehicle, func(v *models.Vehicle) error {
		v.ScanPayload = scancode.Encode(v.ID, v.Plate)
		var err error
		png, err = s.renderCode(v.ScanPayload)
		return err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("error creating vehicle: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"vehicle_id": vehicle.ID,
		"plate":      vehicle.Plate,
		"owner_id":   vehicle.OwnerID,
	}).Info("vehicle registered")

	return &models.VehicleView{Vehicle: *vehicle, OwnerName: owner.FullName}, png, nil
}

func (s *DefaultService) GetVehicle(ctx context.Context, actor *models.Identity, id int64) (*models.VehicleView, error) {
	vehicle, err := s.repo.GetVehicle(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("error getting vehicle: %w", err)
	}

	if err := policy.Authorize(actor, policy.KindVehicle, vehicle.OwnerID, policy.OpRead); err != nil {
		return nil, err
	}
	return vehicle, nil
}

// ListVehicles lists the vehicles visible to actor, optionally narrowed to one owner
func (s *DefaultService) ListVehicles(ctx context.Context, actor *models.Identity, ownerID *int64) ([]models.VehicleView, error) {
	if err := policy.AuthorizeList(actor, policy.KindVehicle); err != nil {
		return nil, err
	}
	scope, err := policy.NarrowScope(actor, ownerID)
	if err != nil {
		return nil, err
	}

	vehicles, err := s.repo.ListVehicles(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("error listing vehicles: %w", err)
	}
	return vehicles, nil
}

// UpdateVehicle applies a partial update against the locked row. A plate
// change reissues the scan payload in the same write.
func (s *DefaultService) UpdateVehicle(
	ctx context.Context,
	actor *models.Identity,
	id int64,
	req models.UpdateVehicleRequest,
) (*models.VehicleView, error) {
	var plate, category string
	var err error
	if req.Plate != nil {
		if plate, err = normalizePlate(*req.Plate); err != nil {
			return nil, err
		}
	}
	if req.Category != nil {
		if category, err = normalizeCategory(*req.Category); err != nil {
			return nil, err
		}
	}

	vehicle, err := s.repo.UpdateVehicle(ctx, id, func(v *models.Vehicle) error {
		if err := policy.Authorize(actor, policy.KindVehicle, v.OwnerID, policy.OpUpdate); err != nil {
			return err
		}
		if req.OwnerID != nil && *req.OwnerID != v.OwnerID {
			if err := policy.Authorize(actor, policy.KindVehicle, v.OwnerID, policy.OpSetOwner); err != nil {
				return err
			}
			v.OwnerID = *req.OwnerID
		}

		if req.Plate != nil && plate != v.Plate {
			v.Plate = plate
			v.ScanPayload = scancode.Encode(v.ID, v.Plate)
		}
		if req.Category != nil {
			v.Category = category
		}
		if req.Make != nil {
			v.Make = req.Make
		}
		if req.Model != nil {
			v.Model = req.Model
		}
		if req.Color != nil {
			v.Color = req.Color
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error updating vehicle: %w", err)
	}

	return vehicle, nil
}

// DeleteVehicle removes the vehicle and its access events
func (s *DefaultService) DeleteVehicle(ctx context.Context, actor *models.Identity, id int64) (*models.CascadeResult, error) {
	result, err := s.repo.DeleteVehicle(ctx, id, func(v *models.Vehicle) error {
		return policy.Authorize(actor, policy.KindVehicle, v.OwnerID, policy.OpDelete)
	})
	if err != nil {
		return nil, fmt.Errorf("error deleting vehicle: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"vehicle_id":     id,
		"deleted_by":     actor.ID,
		"events_deleted": result.Events,
	}).Info("vehicle deleted")

	return result, nil
}

// VehicleCode renders the vehicle's current scan payload as a PNG
func (s *DefaultService) VehicleCode(ctx context.Context, actor *models.Identity, id int64) ([]byte, error) {
	vehicle, err := s.GetVehicle(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	png, err := s.renderCode(vehicle.ScanPayload)
	if err != nil {
		s.log.WithError(err).WithField("vehicle_id", id).Error("qr encoding failed")
		return nil, err
	}
	return png, nil
}

// renderCode encodes payload as a PNG. Encoder failures are dependency
// failures whatever the encoder reports.
func (s *DefaultService) renderCode(payload string) ([]byte, error) {
	png, err := s.encoder.PNG(payload)
	if err != nil {
		if models.Kind(err) != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: encode scan code: %w", models.ErrDependency, err)
	}
	return png, nil
}
