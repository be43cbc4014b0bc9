package admission

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count   int
	resetAt time.Time
}

// Memory keeps counters in process memory. Construct one per process and
// call Sweep periodically to drop finished windows.
type Memory struct {
	cfg Config
	now func() time.Time

	mu      sync.Mutex
	windows map[string]*window
}

// NewMemory returns an in-memory controller. now may be nil to use the wall
// clock.
func NewMemory(cfg Config, now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}

	return &Memory{
		cfg:     cfg.withDefaults(),
		now:     now,
		windows: make(map[string]*window),
	}
}

func (m *Memory) Admit(_ context.Context, key string) (bool, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[key]
	if !ok || now.After(w.resetAt) {
		m.windows[key] = &window{
			count:   1,
			resetAt: now.Add(m.cfg.Window),
		}
		return true, nil
	}

	if w.count >= m.cfg.Limit {
		return false, nil
	}

	w.count++
	return true, nil
}

// Sweep removes every key whose window has elapsed and returns how many were
// dropped. It only bounds memory; admission decisions are unaffected.
func (m *Memory) Sweep() int {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, w := range m.windows {
		if now.After(w.resetAt) {
			delete(m.windows, key)
			removed++
		}
	}

	return removed
}

// Len returns the number of tracked keys.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.windows)
}
