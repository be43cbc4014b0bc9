package tracking

import (
	"context"
	"fmt"
	"time"

	"bitwise74/beacon-api/internal/model"

	"gorm.io/gorm"
)

// Judge decides whether a fetch is the first one from a client.
//
// With Window zero a client counts as unique once per beacon for the beacon's
// whole life. With a positive Window only events newer than Window are
// considered, so a client returning after the window is unique again.
type Judge struct {
	DB     *gorm.DB
	Window time.Duration
	Now    func() time.Time
}

// IsUnique reports whether no earlier event of identity exists for the
// beacon. Fetches without an identity can't be matched and are always unique.
func (j *Judge) IsUnique(ctx context.Context, beaconID string, identity *string) (bool, error) {
	if identity == nil {
		return true, nil
	}

	q := j.DB.WithContext(ctx).
		Model(&model.BeaconEvent{}).
		Where("beacon_id = ? AND client_identity = ?", beaconID, *identity)

	if j.Window > 0 {
		now := time.Now
		if j.Now != nil {
			now = j.Now
		}

		q = q.Where("opened_at > ?", now().UTC().Add(-j.Window))
	}

	var ids []uint
	if err := q.Limit(1).Pluck("id", &ids).Error; err != nil {
		return false, fmt.Errorf("failed to query previous events, %w", err)
	}

	return len(ids) == 0, nil
}
