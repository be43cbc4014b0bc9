// Package analytics summarises the events recorded for a beacon
package analytics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bitwise74/beacon-api/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RecentEventsLimit = 10
	LocationsLimit    = 10
)

var (
	ErrBeaconNotFound = errors.New("beacon not found")
	ErrStatsPrivate   = errors.New("beacon stats are private")
)

type TimelinePoint struct {
	Time  time.Time `json:"time"`
	Count int64     `json:"count"`
}

type RecentEvent struct {
	Time        time.Time `json:"time"`
	IsUnique    bool      `json:"isUnique"`
	EmailClient *string   `json:"emailClient"`
	Browser     *string   `json:"browser"`
	Device      *string   `json:"device"`
	Location    *string   `json:"location"`
	Phase       string    `json:"phase"`
}

type EmailClientCount struct {
	Name  *string `json:"name"`
	Count int64   `json:"count"`
}

type DeviceCount struct {
	Type  *string `json:"type"`
	Count int64   `json:"count"`
}

type LocationCount struct {
	Country *string `json:"country"`
	Count   int64   `json:"count"`
}

type Stats struct {
	Total        int64              `json:"total"`
	Unique       int64              `json:"unique"`
	Timeline     []TimelinePoint    `json:"timeline"`
	RecentEvents []RecentEvent      `json:"recentEvents"`
	EmailClients []EmailClientCount `json:"emailClients"`
	Devices      []DeviceCount      `json:"devices"`
	Locations    []LocationCount    `json:"locations"`
}

// Summary is what the stats page shows for one beacon.
type Summary struct {
	Beacon model.Beacon `json:"pixel"`
	Stats  Stats        `json:"stats"`
}

// Aggregator computes summaries straight from the event table.
type Aggregator struct {
	DB *gorm.DB
}

// Summarize fails with ErrBeaconNotFound or ErrStatsPrivate before reading
// any event, so a private beacon never leaks partial data.
func (a *Aggregator) Summarize(ctx context.Context, beaconID string) (*Summary, error) {
	id, err := uuid.Parse(beaconID)
	if err != nil {
		return nil, ErrBeaconNotFound
	}

	db := a.DB.WithContext(ctx)

	var b model.Beacon
	if err := db.Where("id = ?", id.String()).First(&b).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBeaconNotFound
		}

		return nil, fmt.Errorf("failed to load beacon, %w", err)
	}

	if !b.StatsPublic {
		return nil, ErrStatsPrivate
	}

	s := &Summary{Beacon: b}

	events := func() *gorm.DB {
		return db.Model(&model.BeaconEvent{}).Where("beacon_id = ?", b.ID)
	}

	if err := events().Count(&s.Stats.Total).Error; err != nil {
		return nil, fmt.Errorf("failed to count events, %w", err)
	}

	if err := events().Where("is_unique = ?", true).Count(&s.Stats.Unique).Error; err != nil {
		return nil, fmt.Errorf("failed to count unique events, %w", err)
	}

	if s.Stats.Timeline, err = a.timeline(events()); err != nil {
		return nil, err
	}

	if s.Stats.RecentEvents, err = a.recent(events()); err != nil {
		return nil, err
	}

	clients, err := distribution(events(), "email_client", 0)
	if err != nil {
		return nil, err
	}

	devices, err := distribution(events(), "device_type", 0)
	if err != nil {
		return nil, err
	}

	locations, err := distribution(events().Where("country_code IS NOT NULL"), "country_code", LocationsLimit)
	if err != nil {
		return nil, err
	}

	s.Stats.EmailClients = make([]EmailClientCount, len(clients))
	for i, c := range clients {
		s.Stats.EmailClients[i] = EmailClientCount{Name: c.Value, Count: c.Count}
	}

	s.Stats.Devices = make([]DeviceCount, len(devices))
	for i, c := range devices {
		s.Stats.Devices[i] = DeviceCount{Type: c.Value, Count: c.Count}
	}

	s.Stats.Locations = make([]LocationCount, len(locations))
	for i, c := range locations {
		s.Stats.Locations[i] = LocationCount{Country: c.Value, Count: c.Count}
	}

	return s, nil
}

// Hour truncation differs between SQL dialects, so timestamps are bucketed
// here instead.
func (a *Aggregator) timeline(q *gorm.DB) ([]TimelinePoint, error) {
	var opened []time.Time
	if err := q.Order("opened_at asc").Pluck("opened_at", &opened).Error; err != nil {
		return nil, fmt.Errorf("failed to load event times, %w", err)
	}

	points := []TimelinePoint{}
	for _, t := range opened {
		hour := t.UTC().Truncate(time.Hour)

		if n := len(points); n > 0 && points[n-1].Time.Equal(hour) {
			points[n-1].Count++
			continue
		}

		points = append(points, TimelinePoint{Time: hour, Count: 1})
	}

	return points, nil
}

func (a *Aggregator) recent(q *gorm.DB) ([]RecentEvent, error) {
	var rows []model.BeaconEvent

	err := q.
		Order("opened_at desc").
		Order("id desc").
		Limit(RecentEventsLimit).
		Find(&rows).
		Error
	if err != nil {
		return nil, fmt.Errorf("failed to load recent events, %w", err)
	}

	recent := make([]RecentEvent, len(rows))
	for i, e := range rows {
		recent[i] = RecentEvent{
			Time:        e.OpenedAt,
			IsUnique:    e.IsUnique,
			EmailClient: e.EmailClient,
			Browser:     e.Browser,
			Device:      e.DeviceType,
			Location:    LocationString(e.City, e.Region, e.CountryCode),
			Phase:       e.Phase,
		}
	}

	return recent, nil
}

type bucket struct {
	Value *string `gorm:"column:bucket_value"`
	Count int64   `gorm:"column:bucket_count"`
	First uint    `gorm:"column:first_id"`
}

// distribution groups by column, largest group first. Ties go to the value
// that was recorded first so the order is stable for a given dataset.
func distribution(q *gorm.DB, column string, limit int) ([]bucket, error) {
	q = q.
		Select(column + " AS bucket_value, COUNT(*) AS bucket_count, MIN(id) AS first_id").
		Group(column).
		Order("bucket_count desc").
		Order("first_id asc")

	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []bucket
	if err := q.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to group events by %s, %w", column, err)
	}

	return rows, nil
}

// LocationString joins the known parts of a location, most specific first.
// It returns nil when nothing is known.
func LocationString(parts ...*string) *string {
	known := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != nil && *p != "" {
			known = append(known, *p)
		}
	}

	if len(known) == 0 {
		return nil
	}

	s := strings.Join(known, ", ")
	return &s
}
