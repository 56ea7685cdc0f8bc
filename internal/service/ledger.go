package service

import (
	"context"
	"fmt"
	"math"

	"github.com/fzkn4/gate-security/internal/models"
	"github.com/fzkn4/gate-security/internal/policy"
)

const (
	defaultPerPage = 50
	maxPerPage     = 200
)

// ListEvents returns one page of the access ledger, newest first, restricted
// to the events actor may see
func (s *DefaultService) ListEvents(
	ctx context.Context,
	actor *models.Identity,
	req models.ListEventsRequest,
) (*models.EventsResponse, error) {
	if err := policy.AuthorizeList(actor, policy.KindAccessEvent); err != nil {
		return nil, err
	}
	if req.Direction != nil && !models.IsValidDirection(*req.Direction) {
		return nil, fmt.Errorf("%w: entry type must be %q or %q", models.ErrInvalidInput, models.DirectionIn, models.DirectionOut)
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	perPage := req.PerPage
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	if page-1 > math.MaxInt32/perPage {
		return nil, fmt.Errorf("%w: page %d is out of range", models.ErrInvalidInput, page)
	}

	events, total, err := s.repo.ListEvents(ctx, models.EventFilter{
		OwnerID:   policy.Scope(actor),
		VehicleID: req.VehicleID,
		Direction: req.Direction,
		Limit:     perPage,
		Offset:    (page - 1) * perPage,
	})
	if err != nil {
		return nil, fmt.Errorf("error listing events: %w", err)
	}

	return &models.EventsResponse{
		Status:      "success",
		Entries:     events,
		Total:       total,
		Pages:       int((total + int64(perPage) - 1) / int64(perPage)),
		CurrentPage: page,
	}, nil
}
