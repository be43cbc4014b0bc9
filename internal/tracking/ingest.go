// Package tracking turns beacon fetches into recorded events
package tracking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"bitwise74/beacon-api/internal/classify"
	"bitwise74/beacon-api/internal/metrics"
	"bitwise74/beacon-api/internal/model"
	"bitwise74/beacon-api/pkg/security"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Outcome string

const (
	OutcomeRecorded Outcome = "recorded"
	OutcomeCreator  Outcome = "creator"
	OutcomeExpired  Outcome = "expired"
	OutcomeMissing  Outcome = "missing"
	OutcomeFailed   Outcome = "failed"
)

// Fetch holds the raw signals of one beacon request.
type Fetch struct {
	BeaconID  string
	UserAgent string
	Referer   string
	ClientIP  string
}

const lockStripes = 64

type Ingestor struct {
	DB       *gorm.DB
	Hasher   *security.IdentityHasher
	Creators *CreatorFilter
	Locator  *classify.Locator
	Judge    *Judge
	Recorder *Recorder
	Metrics  *metrics.Metrics

	// Events this close to the beacon's creation are tagged as setup
	// fetches. Zero disables tagging.
	SetupWindow time.Duration
	// Upper bound for the whole pipeline of one fetch.
	Timeout time.Duration
	Now     func() time.Time

	// Judging and recording of one (beacon, identity) pair is serialised so
	// two simultaneous first opens can't both be unique.
	locks [lockStripes]sync.Mutex
}

// IngestorOpts configures NewIngestor.
type IngestorOpts struct {
	DB           *gorm.DB
	Hasher       *security.IdentityHasher
	Locator      *classify.Locator
	Metrics      *metrics.Metrics
	UniqueWindow time.Duration
	SetupWindow  time.Duration
	Timeout      time.Duration
	Now          func() time.Time
}

func NewIngestor(o IngestorOpts) *Ingestor {
	now := o.Now
	if now == nil {
		now = time.Now
	}

	hasher := o.Hasher
	if hasher == nil {
		hasher = security.NewIdentityHasher(true, "")
	}

	locator := o.Locator
	if locator == nil {
		locator = classify.NewLocator(nil)
	}

	m := o.Metrics
	if m == nil {
		m = metrics.New()
	}

	return &Ingestor{
		DB:          o.DB,
		Hasher:      hasher,
		Creators:    &CreatorFilter{DB: o.DB},
		Locator:     locator,
		Judge:       &Judge{DB: o.DB, Window: o.UniqueWindow, Now: now},
		Recorder:    &Recorder{DB: o.DB},
		Metrics:     m,
		SetupWindow: o.SetupWindow,
		Timeout:     o.Timeout,
		Now:         now,
	}
}

// Ingest runs the fetch pipeline. It is the only place fetch path failures
// end up: every error and panic is logged here and never reaches the caller,
// who serves the pixel no matter what the outcome is.
func (in *Ingestor) Ingest(ctx context.Context, f Fetch) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("Beacon ingestion panicked", zap.Any("panic", r), zap.String("beaconID", f.BeaconID))
			outcome = OutcomeFailed
		}

		in.Metrics.Fetches.WithLabelValues(string(outcome)).Inc()
	}()

	// A client hanging up mid request must not abort the write
	ctx = context.WithoutCancel(ctx)
	if in.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, in.Timeout)
		defer cancel()
	}

	outcome, err := in.ingest(ctx, f)
	if err != nil {
		zap.L().Error("Failed to ingest beacon fetch", zap.Error(err), zap.String("beaconID", f.BeaconID))
	}

	return outcome
}

func (in *Ingestor) ingest(ctx context.Context, f Fetch) (Outcome, error) {
	id, err := uuid.Parse(f.BeaconID)
	if err != nil {
		return OutcomeMissing, nil
	}

	var b model.Beacon

	err = in.DB.WithContext(ctx).
		Where("id = ?", id.String()).
		First(&b).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return OutcomeMissing, nil
		}

		return OutcomeFailed, fmt.Errorf("failed to load beacon, %w", err)
	}

	now := in.Now().UTC()
	if b.Expired(now) {
		return OutcomeExpired, nil
	}

	identity := in.Hasher.Identity(f.ClientIP)

	isCreator, err := in.Creators.IsCreator(ctx, b.ID, identity)
	if err != nil {
		return OutcomeFailed, err
	}

	if isCreator {
		return OutcomeCreator, nil
	}

	userAgent := optional(strings.TrimSpace(f.UserAgent))
	classification := classify.Classify(userAgent)
	location := in.Locator.Resolve(ctx, f.ClientIP)

	phase := model.PhaseOpen
	if in.SetupWindow > 0 && now.Sub(b.CreatedAt) <= in.SetupWindow {
		phase = model.PhaseSetup
	}

	unlock := in.lock(b.ID, identity)
	defer unlock()

	unique, err := in.Judge.IsUnique(ctx, b.ID, identity)
	if err != nil {
		return OutcomeFailed, err
	}

	err = in.Recorder.Record(ctx, Event{
		BeaconID:       b.ID,
		OpenedAt:       now,
		UserAgent:      userAgent,
		Referer:        optional(strings.TrimSpace(f.Referer)),
		ClientIdentity: identity,
		Classification: classification,
		Location:       location,
		IsUnique:       unique,
		Phase:          phase,
	})
	if err != nil {
		return OutcomeFailed, err
	}

	return OutcomeRecorded, nil
}

func (in *Ingestor) lock(beaconID string, identity *string) func() {
	key := beaconID
	if identity != nil {
		key += "|" + *identity
	}

	mu := &in.locks[xxhash.Sum64String(key)%lockStripes]
	mu.Lock()

	return mu.Unlock
}
