package model

import (
	"time"

	"gorm.io/datatypes"
)

// BeaconCreator is a snapshot of the environment a beacon was generated from.
// It only exists to recognise the creator's own fetches and is never part of
// public stats.
type BeaconCreator struct {
	ID             uint      `gorm:"primaryKey;autoIncrement"`
	BeaconID       string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_creator_identity,priority:1"`
	ClientIdentity *string   `gorm:"size:64;uniqueIndex:idx_creator_identity,priority:2"`
	CreatedAt      time.Time `gorm:"not null"`
	VisitorID      *string

	Browser        *string `gorm:"size:100"`
	BrowserVersion *string `gorm:"size:50"`
	OS             *string `gorm:"size:100"`
	OSVersion      *string `gorm:"size:50"`
	Device         *string `gorm:"size:100"`
	DeviceType     *string `gorm:"size:50"`

	ScreenWidth    *int
	ScreenHeight   *int
	ScreenDepth    *int
	ViewportWidth  *int
	ViewportHeight *int

	Timezone       *string `gorm:"size:100"`
	TimezoneOffset *int
	Language       *string `gorm:"size:10"`
	Languages      LanguageList

	Platform            *string `gorm:"size:100"`
	Vendor              *string `gorm:"size:100"`
	HardwareConcurrency *int
	DeviceMemory        *float64
	MaxTouchPoints      *int

	CookiesEnabled *bool
	DoNotTrack     *bool
	WebGLVendor    *string
	WebGLRenderer  *string

	CanvasHash *string
	AudioHash  *string
	FontsHash  *string

	FullFingerprint datatypes.JSON
}
