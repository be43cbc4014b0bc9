package tracking

import (
	"context"
	"fmt"
	"time"

	"bitwise74/beacon-api/internal/classify"
	"bitwise74/beacon-api/internal/model"

	"gorm.io/gorm"
)

// Event is everything known about one accepted fetch.
type Event struct {
	BeaconID       string
	OpenedAt       time.Time
	UserAgent      *string
	Referer        *string
	ClientIdentity *string
	Classification classify.Classification
	Location       classify.Location
	IsUnique       bool
	Phase          string
}

// Recorder persists accepted fetches.
type Recorder struct {
	DB *gorm.DB
}

// Record inserts exactly one event row.
func (r *Recorder) Record(ctx context.Context, e Event) error {
	phase := e.Phase
	if phase == "" {
		phase = model.PhaseOpen
	}

	row := model.BeaconEvent{
		BeaconID:       e.BeaconID,
		OpenedAt:       e.OpenedAt.UTC(),
		UserAgent:      e.UserAgent,
		ClientIdentity: e.ClientIdentity,
		Referer:        e.Referer,
		Browser:        e.Classification.Browser,
		OS:             e.Classification.OS,
		DeviceType:     e.Classification.DeviceType,
		EmailClient:    e.Classification.EmailClient,
		CountryCode:    e.Location.CountryCode,
		City:           e.Location.City,
		Region:         e.Location.Region,
		IsUnique:       e.IsUnique,
		Phase:          phase,
	}

	if err := r.DB.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert beacon event, %w", err)
	}

	return nil
}
