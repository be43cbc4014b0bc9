// Package admission throttles beacon creation per client with a fixed window
// counter.
//
// A fixed window lets a client spend its whole limit at the end of one window
// and again at the start of the next, so up to 2x limit requests can land in
// any span of one window length. Beacon creation spam is a low stakes target
// and this is a known property of the limiter, not a bug.
package admission

import (
	"context"
	"time"
)

const (
	DefaultLimit  = 10
	DefaultWindow = time.Minute
)

// Controller decides whether another request from key fits in its window.
type Controller interface {
	// Admit reports whether the request is allowed. A non nil error means the
	// backing store failed; the boolean is then the fail-open answer.
	Admit(ctx context.Context, key string) (bool, error)
}

// Config holds the limit shared by every key.
type Config struct {
	Limit  int
	Window time.Duration
}

func (c Config) withDefaults() Config {
	if c.Limit <= 0 {
		c.Limit = DefaultLimit
	}

	if c.Window <= 0 {
		c.Window = DefaultWindow
	}

	return c
}
