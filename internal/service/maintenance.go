// Package service contains background jobs that keep in-memory state small
package service

import (
	"fmt"
	"time"

	"bitwise74/beacon-api/internal/metrics"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Sweeper drops state that is no longer needed and reports how much it
// removed.
type Sweeper interface {
	Sweep() int
}

type Maintenance struct {
	cron      *cron.Cron
	metrics   *metrics.Metrics
	admission Sweeper
	limiter   Sweeper
}

// NewMaintenance schedules the sweeps every interval. Either sweeper may be
// nil when its component keeps no local state.
func NewMaintenance(interval time.Duration, m *metrics.Metrics, admission, limiter Sweeper) (*Maintenance, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("invalid maintenance interval %s", interval)
	}

	mt := &Maintenance{
		cron:      cron.New(),
		metrics:   m,
		admission: admission,
		limiter:   limiter,
	}

	_, err := mt.cron.AddFunc(fmt.Sprintf("@every %s", interval), mt.Run)
	if err != nil {
		return nil, fmt.Errorf("failed to schedule maintenance, %w", err)
	}

	zap.L().Debug("Maintenance attached", zap.Duration("tick_every", interval))

	return mt, nil
}

// Run performs one sweep of every component.
func (mt *Maintenance) Run() {
	if mt.admission != nil {
		n := mt.admission.Sweep()
		mt.metrics.AdmissionSwept.Add(float64(n))

		if n > 0 {
			zap.L().Debug("Swept admission windows", zap.Int("removed", n))
		}
	}

	if mt.limiter != nil {
		if n := mt.limiter.Sweep(); n > 0 {
			zap.L().Debug("Swept idle rate limit visitors", zap.Int("removed", n))
		}
	}
}

func (mt *Maintenance) Start() {
	mt.cron.Start()
}

// Stop halts the schedule and waits for a running sweep to finish.
func (mt *Maintenance) Stop() {
	<-mt.cron.Stop().Done()
}
