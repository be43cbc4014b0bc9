// Package internal holds the dependencies shared by every handler
package internal

import (
	"bitwise74/beacon-api/internal/admission"
	"bitwise74/beacon-api/internal/analytics"
	"bitwise74/beacon-api/internal/metrics"
	"bitwise74/beacon-api/internal/tracking"
	"bitwise74/beacon-api/pkg/security"

	"gorm.io/gorm"
)

type Deps struct {
	DB         *gorm.DB
	Admission  admission.Controller
	Ingestor   *tracking.Ingestor
	Aggregator *analytics.Aggregator
	Hasher     *security.IdentityHasher
	Metrics    *metrics.Metrics

	// PublicURL is the base of the links handed out on creation. Empty means
	// derive it from the request.
	PublicURL string
}
