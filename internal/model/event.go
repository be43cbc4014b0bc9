package model

import "time"

const (
	PhaseSetup = "setup" // Fetched while the message was still being composed
	PhaseOpen  = "open"
)

type BeaconEvent struct {
	ID       uint      `gorm:"primaryKey;autoIncrement"`
	BeaconID string    `gorm:"type:varchar(36);not null;index:idx_event_identity,priority:1"`
	OpenedAt time.Time `gorm:"not null;index"`

	UserAgent      *string
	ClientIdentity *string `gorm:"size:64;index:idx_event_identity,priority:2"` // sha256 hex or raw address
	Referer        *string

	Browser     *string `gorm:"size:100"`
	OS          *string `gorm:"size:100"`
	DeviceType  *string `gorm:"size:50"`
	EmailClient *string `gorm:"size:100"`

	CountryCode *string `gorm:"size:2"`
	City        *string `gorm:"size:100"`
	Region      *string `gorm:"size:100"`

	IsUnique bool   `gorm:"not null"`
	Phase    string `gorm:"size:20;not null;default:open"`
}
