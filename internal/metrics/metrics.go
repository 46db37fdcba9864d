// Package metrics exposes Prometheus collectors for the scrape pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rentpulse/rentpulse/internal/scrape"
)

// Metrics holds the pipeline's collectors, registered on one registry.
type Metrics struct {
	registry *prometheus.Registry

	scrapesTotal     *prometheus.CounterVec
	unitsExtracted   *prometheus.CounterVec
	scrapeDuration   *prometheus.HistogramVec
	batchRunsTotal   prometheus.Counter
	batchRunDuration prometheus.Histogram
}

// New builds a Metrics set on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		scrapesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rentpulse_scrapes_total",
				Help: "Scrape attempts, labeled by platform and resulting status.",
			},
			[]string{"platform", "status"},
		),
		unitsExtracted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rentpulse_units_extracted_total",
				Help: "Normalized units persisted, labeled by platform.",
			},
			[]string{"platform"},
		),
		scrapeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rentpulse_scrape_duration_seconds",
				Help:    "Per-building scrape latency, labeled by platform.",
				Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"platform"},
		),
		batchRunsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "rentpulse_batch_runs_total",
				Help: "Completed batch runs.",
			},
		),
		batchRunDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rentpulse_batch_run_duration_seconds",
				Help:    "Whole-batch wall time.",
				Buckets: []float64{30, 60, 120, 300, 600, 1200, 3600},
			},
		),
	}
}

// ScrapeCompleted records one finished per-building scrape.
func (m *Metrics) ScrapeCompleted(platform scrape.Platform, status scrape.Status, units int, d time.Duration) {
	m.scrapesTotal.WithLabelValues(string(platform), string(status)).Inc()
	m.unitsExtracted.WithLabelValues(string(platform)).Add(float64(units))
	m.scrapeDuration.WithLabelValues(string(platform)).Observe(d.Seconds())
}

// BatchCompleted records one finished batch run.
func (m *Metrics) BatchCompleted(summary scrape.Summary) {
	m.batchRunsTotal.Inc()
	m.batchRunDuration.Observe(summary.FinishedAt.Sub(summary.StartedAt).Seconds())
}

// Handler returns the scrape-exposition HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry (tests).
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
