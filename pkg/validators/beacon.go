// Package validators contains validators found throughout the application
// that have been abstracted away from the main code
package validators

import (
	"errors"
	"time"
	"unicode/utf8"
)

const MaxLabelLength = 255

var (
	ErrExpirationInvalid = errors.New("Invalid expiration option. Must be 24h, 7d, or 30d.")
	ErrLabelTooLong      = errors.New("Label can't be longer than 255 characters")
)

var expirations = map[string]time.Duration{
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
}

// ExpirationValidator maps an expiresIn option to how long the beacon stays
// active.
func ExpirationValidator(opt string) (time.Duration, error) {
	d, ok := expirations[opt]
	if !ok {
		return 0, ErrExpirationInvalid
	}

	return d, nil
}

func LabelValidator(label *string) error {
	if label != nil && utf8.RuneCountInString(*label) > MaxLabelLength {
		return ErrLabelTooLong
	}

	return nil
}
