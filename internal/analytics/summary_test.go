package analytics

import (
	"context"
	"testing"
	"time"

	"bitwise74/beacon-api/internal/model"
	"bitwise74/beacon-api/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var base = time.Date(2025, 3, 1, 9, 15, 0, 0, time.UTC)

func newBeacon(t *testing.T, db *gorm.DB, public bool) *model.Beacon {
	t.Helper()

	b := &model.Beacon{CreatedAt: base, StatsPublic: public, Label: testutil.Ptr("newsletter")}
	require.NoError(t, db.Create(b).Error)
	return b
}

type ev struct {
	at       time.Duration
	identity string
	client   string
	device   string
	country  string
	city     string
	unique   bool
}

func record(t *testing.T, db *gorm.DB, beaconID string, events ...ev) {
	t.Helper()

	opt := func(s string) *string {
		if s == "" {
			return nil
		}
		return &s
	}

	for _, e := range events {
		require.NoError(t, db.Create(&model.BeaconEvent{
			BeaconID:       beaconID,
			OpenedAt:       base.Add(e.at),
			ClientIdentity: opt(e.identity),
			EmailClient:    opt(e.client),
			DeviceType:     opt(e.device),
			CountryCode:    opt(e.country),
			City:           opt(e.city),
			IsUnique:       e.unique,
			Phase:          model.PhaseOpen,
		}).Error)
	}
}

func TestSummarizeFourDistinctViewers(t *testing.T) {
	db := testutil.NewDB(t)
	b := newBeacon(t, db, true)

	record(t, db, b.ID,
		ev{at: 0, identity: "a", client: "Gmail", device: "desktop", country: "US", unique: true},
		ev{at: time.Minute, identity: "b", client: "Gmail", device: "mobile", country: "GB", unique: true},
		ev{at: 2 * time.Minute, identity: "c", client: "Apple Mail", device: "mobile", country: "US", unique: true},
		ev{at: 3 * time.Minute, identity: "d", device: "desktop", unique: true},
	)

	s, err := (&Aggregator{DB: db}).Summarize(context.Background(), b.ID)
	require.NoError(t, err)

	assert.Equal(t, b.ID, s.Beacon.ID)
	assert.Equal(t, "newsletter", *s.Beacon.Label)
	assert.Equal(t, int64(4), s.Stats.Total)
	assert.Equal(t, int64(4), s.Stats.Unique)
}

func TestSummarizeCountsUniqueFlag(t *testing.T) {
	db := testutil.NewDB(t)
	b := newBeacon(t, db, true)

	record(t, db, b.ID,
		ev{identity: "a", unique: true},
		ev{at: time.Minute, identity: "a"},
		ev{at: 2 * time.Minute, identity: "b", unique: true},
	)

	s, err := (&Aggregator{DB: db}).Summarize(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), s.Stats.Total)
	assert.Equal(t, int64(2), s.Stats.Unique)
}

func TestSummarizeTimeline(t *testing.T) {
	db := testutil.NewDB(t)
	b := newBeacon(t, db, true)

	// Inserted out of order on purpose
	record(t, db, b.ID,
		ev{at: 2 * time.Hour},
		ev{at: 0},
		ev{at: 30 * time.Minute},
		ev{at: 50 * time.Minute},
		ev{at: 2*time.Hour + 5*time.Minute},
	)

	s, err := (&Aggregator{DB: db}).Summarize(context.Background(), b.ID)
	require.NoError(t, err)

	require.Len(t, s.Stats.Timeline, 3)
	assert.True(t, s.Stats.Timeline[0].Time.Equal(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)))
	assert.Equal(t, int64(2), s.Stats.Timeline[0].Count)
	assert.True(t, s.Stats.Timeline[1].Time.Equal(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)))
	assert.Equal(t, int64(1), s.Stats.Timeline[1].Count)
	assert.True(t, s.Stats.Timeline[2].Time.Equal(time.Date(2025, 3, 1, 11, 0, 0, 0, time.UTC)))
	assert.Equal(t, int64(2), s.Stats.Timeline[2].Count)
}

func TestSummarizeRecentEvents(t *testing.T) {
	db := testutil.NewDB(t)
	b := newBeacon(t, db, true)

	for i := 0; i < 12; i++ {
		record(t, db, b.ID, ev{at: time.Duration(i) * time.Minute, country: "US", city: "Boston"})
	}

	s, err := (&Aggregator{DB: db}).Summarize(context.Background(), b.ID)
	require.NoError(t, err)

	require.Len(t, s.Stats.RecentEvents, RecentEventsLimit)
	for i := 1; i < len(s.Stats.RecentEvents); i++ {
		assert.True(t, s.Stats.RecentEvents[i-1].Time.After(s.Stats.RecentEvents[i].Time))
	}
	assert.True(t, s.Stats.RecentEvents[0].Time.Equal(base.Add(11*time.Minute)))
	assert.Equal(t, "Boston, US", *s.Stats.RecentEvents[0].Location)
}

func TestSummarizeDistributions(t *testing.T) {
	db := testutil.NewDB(t)
	b := newBeacon(t, db, true)

	record(t, db, b.ID,
		ev{client: "Apple Mail", device: "mobile", country: "DE"},
		ev{client: "Gmail", device: "desktop", country: "US"},
		ev{client: "Gmail", device: "desktop", country: "US"},
		ev{device: "tablet"},
		ev{client: "Outlook.com", device: "mobile", country: "FR"},
	)

	s, err := (&Aggregator{DB: db}).Summarize(context.Background(), b.ID)
	require.NoError(t, err)

	// Gmail leads, then ties in order of first appearance, null included
	require.Len(t, s.Stats.EmailClients, 4)
	assert.Equal(t, "Gmail", *s.Stats.EmailClients[0].Name)
	assert.Equal(t, int64(2), s.Stats.EmailClients[0].Count)
	assert.Equal(t, "Apple Mail", *s.Stats.EmailClients[1].Name)
	assert.Nil(t, s.Stats.EmailClients[2].Name)
	assert.Equal(t, "Outlook.com", *s.Stats.EmailClients[3].Name)

	var sum int64
	for _, c := range s.Stats.EmailClients {
		sum += c.Count
	}
	assert.Equal(t, s.Stats.Total, sum)

	require.Len(t, s.Stats.Devices, 3)
	assert.Equal(t, "mobile", *s.Stats.Devices[0].Type)
	assert.Equal(t, "desktop", *s.Stats.Devices[1].Type)
	assert.Equal(t, "tablet", *s.Stats.Devices[2].Type)

	// Unknown countries are left out
	require.Len(t, s.Stats.Locations, 3)
	assert.Equal(t, "US", *s.Stats.Locations[0].Country)
	assert.Equal(t, "DE", *s.Stats.Locations[1].Country)
	assert.Equal(t, "FR", *s.Stats.Locations[2].Country)
}

func TestSummarizeLocationsTopTen(t *testing.T) {
	db := testutil.NewDB(t)
	b := newBeacon(t, db, true)

	countries := []string{"AA", "BB", "CC", "DD", "EE", "FF", "GG", "HH", "II", "JJ", "KK", "LL"}
	for _, c := range countries {
		record(t, db, b.ID, ev{country: c})
	}

	s, err := (&Aggregator{DB: db}).Summarize(context.Background(), b.ID)
	require.NoError(t, err)

	require.Len(t, s.Stats.Locations, LocationsLimit)
	assert.Equal(t, "AA", *s.Stats.Locations[0].Country)
	assert.Equal(t, "JJ", *s.Stats.Locations[9].Country)
}

func TestSummarizeEmptyBeacon(t *testing.T) {
	db := testutil.NewDB(t)
	b := newBeacon(t, db, true)

	s, err := (&Aggregator{DB: db}).Summarize(context.Background(), b.ID)
	require.NoError(t, err)

	assert.Zero(t, s.Stats.Total)
	assert.NotNil(t, s.Stats.Timeline)
	assert.Empty(t, s.Stats.Timeline)
	assert.Empty(t, s.Stats.RecentEvents)
	assert.Empty(t, s.Stats.Locations)
}

func TestSummarizePrivateBeacon(t *testing.T) {
	db := testutil.NewDB(t)
	b := newBeacon(t, db, false)
	record(t, db, b.ID, ev{country: "US"})

	s, err := (&Aggregator{DB: db}).Summarize(context.Background(), b.ID)
	assert.ErrorIs(t, err, ErrStatsPrivate)
	assert.Nil(t, s)
}

func TestSummarizeMissingBeacon(t *testing.T) {
	a := &Aggregator{DB: testutil.NewDB(t)}

	_, err := a.Summarize(context.Background(), "6f1d2c3e-0000-4000-8000-000000000000")
	assert.ErrorIs(t, err, ErrBeaconNotFound)

	_, err = a.Summarize(context.Background(), "garbage")
	assert.ErrorIs(t, err, ErrBeaconNotFound)
}

func TestLocationString(t *testing.T) {
	city, region, country := "Mountain View", "CA", "US"

	assert.Equal(t, "Mountain View, CA, US", *LocationString(&city, &region, &country))
	assert.Equal(t, "CA, US", *LocationString(nil, &region, &country))
	assert.Equal(t, "US", *LocationString(nil, nil, &country))
	assert.Nil(t, LocationString(nil, nil, nil))
}
