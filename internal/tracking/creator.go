package tracking

import (
	"context"
	"fmt"

	"bitwise74/beacon-api/internal/model"

	"gorm.io/gorm"
)

// CreatorFilter recognises fetches made by whoever generated the beacon, like
// previews while composing or test sends to themselves.
type CreatorFilter struct {
	DB *gorm.DB
}

func (f *CreatorFilter) IsCreator(ctx context.Context, beaconID string, identity *string) (bool, error) {
	if identity == nil {
		return false, nil
	}

	var found bool

	err := f.DB.WithContext(ctx).
		Model(&model.BeaconCreator{}).
		Select("count(*) > 0").
		Where("beacon_id = ? AND client_identity = ?", beaconID, *identity).
		Find(&found).
		Error
	if err != nil {
		return false, fmt.Errorf("failed to look up beacon creator, %w", err)
	}

	return found, nil
}
