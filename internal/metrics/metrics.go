// Package metrics exposes prometheus counters for the beacon pipeline
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector on its own registry so tests can create as
// many instances as they like.
type Metrics struct {
	Registry *prometheus.Registry

	BeaconsCreated *prometheus.CounterVec
	Fetches        *prometheus.CounterVec
	StatsQueries   *prometheus.CounterVec
	AdmissionSwept prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		BeaconsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beacon_creations_total",
				Help: "Beacon creation requests by outcome",
			},
			[]string{"outcome"},
		),
		Fetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beacon_fetches_total",
				Help: "Beacon image fetches by ingestion outcome",
			},
			[]string{"outcome"},
		),
		StatsQueries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beacon_stats_queries_total",
				Help: "Stats queries by outcome",
			},
			[]string{"outcome"},
		),
		AdmissionSwept: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "beacon_admission_swept_total",
				Help: "Expired admission windows removed from memory",
			},
		),
	}

	m.Registry.MustRegister(
		m.BeaconsCreated,
		m.Fetches,
		m.StatsQueries,
		m.AdmissionSwept,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
