package service

import (
	"context"
	"fmt"
	"time"

	"github.com/fzkn4/gate-security/internal/models"
	"github.com/fzkn4/gate-security/internal/policy"
)

// dayWindow returns [local midnight, next local midnight) around now in loc
func dayWindow(now time.Time, loc *time.Location) (time.Time, time.Time) {
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

// Stats summarises the ledger for the records actor may see. "Today" is the
// current calendar day in the configured stats timezone.
func (s *DefaultService) Stats(ctx context.Context, actor *models.Identity) (*models.Stats, error) {
	if err := policy.AuthorizeList(actor, policy.KindAccessEvent); err != nil {
		return nil, err
	}

	dayStart, dayEnd := dayWindow(s.now(), s.statsLocation)

	stats, err := s.repo.Stats(ctx, policy.Scope(actor), dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("error computing stats: %w", err)
	}

	stats.DayStart = dayStart
	stats.DayEnd = dayEnd
	stats.Timezone = s.statsLocation.String()
	return stats, nil
}
