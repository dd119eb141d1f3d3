package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pipeline's counters and their Prometheus collectors.
type Metrics struct {
	// Batch runs
	RunsStarted  atomic.Uint64
	RunsFinished atomic.Uint64
	RunActive    atomic.Uint64 // 0 = idle, 1 = running

	imagesProcessed *prometheus.CounterVec
	markersWritten  prometheus.Counter
	siteMarkers     *prometheus.GaugeVec
	runDuration     prometheus.Histogram

	registry *prometheus.Registry
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		imagesProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parkmap_images_processed_total",
				Help: "Images handled by the pipeline, by outcome",
			},
			[]string{"status"},
		),
		markersWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "parkmap_markers_written_total",
			Help: "Markers committed to the store",
		}),
		siteMarkers: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "parkmap_site_markers",
				Help: "Markers currently stored per site",
			},
			[]string{"site_id"},
		),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "parkmap_run_duration_seconds",
			Help:    "Wall time of one pending-image batch",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
	}

	m.registry.MustRegister(m.imagesProcessed, m.markersWritten, m.siteMarkers, m.runDuration)

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "parkmap_runs_started_total",
			Help: "Batch runs started",
		},
		func() float64 { return float64(m.RunsStarted.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "parkmap_runs_finished_total",
			Help: "Batch runs finished",
		},
		func() float64 { return float64(m.RunsFinished.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "parkmap_run_active",
			Help: "Batch run in progress (0=idle, 1=running)",
		},
		func() float64 { return float64(m.RunActive.Load()) },
	))

	return m
}

// RunStarted marks the beginning of a batch and returns the function that
// closes it.
func (m *Metrics) RunStarted() func() {
	start := time.Now()
	m.RunsStarted.Add(1)
	m.RunActive.Store(1)
	return func() {
		m.runDuration.Observe(time.Since(start).Seconds())
		m.RunActive.Store(0)
		m.RunsFinished.Add(1)
	}
}

func (m *Metrics) ImageProcessed(status string) {
	m.imagesProcessed.WithLabelValues(status).Inc()
}

// SiteCommitted records a committed marker generation for a site.
func (m *Metrics) SiteCommitted(siteID string, markers int) {
	m.markersWritten.Add(float64(markers))
	m.siteMarkers.WithLabelValues(siteID).Set(float64(markers))
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
