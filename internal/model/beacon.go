// Package model defines database models
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Beacon struct {
	ID          string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Label       *string    `gorm:"size:255" json:"label"`
	CreatedAt   time.Time  `gorm:"not null" json:"createdAt"`
	ExpiresAt   *time.Time `json:"expiresAt"`
	StatsPublic bool       `gorm:"not null" json:"-"`

	// Deleting a beacon removes everything recorded for it
	Events   []BeaconEvent   `gorm:"constraint:OnDelete:CASCADE;" json:"-"`
	Creators []BeaconCreator `gorm:"constraint:OnDelete:CASCADE;" json:"-"`
}

// BeforeCreate assigns a random UUID when the caller didn't provide one.
func (b *Beacon) BeforeCreate(_ *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}

	return nil
}

// Expired reports whether the beacon stopped accepting events at now.
func (b *Beacon) Expired(now time.Time) bool {
	return b.ExpiresAt != nil && now.After(*b.ExpiresAt)
}
