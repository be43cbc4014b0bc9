package service

import (
	"context"
	"testing"
	"time"

	"bitwise74/beacon-api/internal/admission"
	"bitwise74/beacon-api/internal/metrics"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSweeper struct {
	calls int
}

func (s *countingSweeper) Sweep() int {
	s.calls++
	return 0
}

func TestMaintenanceRun(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	mem := admission.NewMemory(admission.Config{Limit: 1, Window: time.Minute}, func() time.Time { return now })

	for _, key := range []string{"a", "b", "c"} {
		_, err := mem.Admit(context.Background(), key)
		require.NoError(t, err)
	}

	m := metrics.New()
	limiter := &countingSweeper{}

	mt, err := NewMaintenance(time.Minute, m, mem, limiter)
	require.NoError(t, err)

	mt.Run()
	assert.Equal(t, 3, mem.Len())
	assert.Zero(t, promtest.ToFloat64(m.AdmissionSwept))

	now = now.Add(2 * time.Minute)
	mt.Run()

	assert.Zero(t, mem.Len())
	assert.Equal(t, float64(3), promtest.ToFloat64(m.AdmissionSwept))
	assert.Equal(t, 2, limiter.calls)
}

func TestMaintenanceNilSweepers(t *testing.T) {
	mt, err := NewMaintenance(time.Minute, metrics.New(), nil, nil)
	require.NoError(t, err)

	assert.NotPanics(t, mt.Run)

	mt.Start()
	mt.Stop()
}

func TestMaintenanceBadInterval(t *testing.T) {
	_, err := NewMaintenance(0, metrics.New(), nil, nil)
	assert.Error(t, err)
}
