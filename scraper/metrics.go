package scraper

import (
	"time"

	"github.com/aluiziolira/ecam-fetch/models"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for listing and downloading.
type Metrics struct {
	Registry          *prometheus.Registry
	RequestsTotal     *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	FilesTotal        *prometheus.CounterVec
	BytesTotal        prometheus.Counter
	ErrorsTotal       *prometheus.CounterVec
	DownloadsInFlight prometheus.Gauge
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecam_requests_total",
			Help: "Total HTTP requests issued, by kind (listing, head, get).",
		},
		[]string{"kind"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ecam_request_duration_seconds",
			Help:    "HTTP request latency by kind.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
	files := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecam_files_total",
			Help: "Files processed, by outcome.",
		},
		[]string{"outcome"},
	)
	bytesTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ecam_downloaded_bytes_total",
			Help: "Bytes written to disk by completed downloads.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecam_errors_total",
			Help: "Errors by type.",
		},
		[]string{"error_type"},
	)
	inFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ecam_downloads_in_flight",
			Help: "Downloads currently holding a concurrency slot.",
		},
	)

	registry.MustRegister(requests, requestDuration, files, bytesTotal, errorsTotal, inFlight)

	return &Metrics{
		Registry:          registry,
		RequestsTotal:     requests,
		RequestDuration:   requestDuration,
		FilesTotal:        files,
		BytesTotal:        bytesTotal,
		ErrorsTotal:       errorsTotal,
		DownloadsInFlight: inFlight,
	}
}

// IncRequest increments the requests counter for kind.
func (m *Metrics) IncRequest(kind string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(kind).Inc()
}

// ObserveDuration records a request duration for kind.
func (m *Metrics) ObserveDuration(kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// ObserveResult counts a finished file.
func (m *Metrics) ObserveResult(r *models.DownloadResult) {
	if m == nil || r == nil {
		return
	}
	m.FilesTotal.WithLabelValues(string(r.Outcome)).Inc()
	if r.Outcome == models.OutcomeDownloaded {
		m.BytesTotal.Add(float64(r.Bytes))
	}
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// DownloadStarted marks a download slot as taken.
func (m *Metrics) DownloadStarted() {
	if m == nil {
		return
	}
	m.DownloadsInFlight.Inc()
}

// DownloadFinished releases a download slot.
func (m *Metrics) DownloadFinished() {
	if m == nil {
		return
	}
	m.DownloadsInFlight.Dec()
}
