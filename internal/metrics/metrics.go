// Package metrics exposes Prometheus collectors for scans, jobs, and HTTP.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vmunix/reelbox/internal/jobs"
	"github.com/vmunix/reelbox/internal/library"
)

const namespace = "reelbox"

// Metrics holds the collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	ScansTotal      prometheus.Counter
	ScanDuration    prometheus.Histogram
	Videos          prometheus.Gauge
	JobsTotal       *prometheus.CounterVec
	JobsActive      *prometheus.GaugeVec
	HTTPRequests    *prometheus.CounterVec
	HTTPRequestTime *prometheus.HistogramVec
}

// New creates and registers all collectors, plus the Go runtime and process
// collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ScansTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_total",
			Help:      "Total completed library scans.",
		}),
		ScanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_duration_seconds",
			Help:      "Library scan duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		}),
		Videos: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "videos",
			Help:      "Videos in the catalog after the last scan.",
		}),
		JobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Job status transitions by kind and new status.",
		}, []string{"kind", "status"}),
		JobsActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_active",
			Help:      "Jobs currently downloading, by kind.",
		}, []string{"kind"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		HTTPRequestTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   []float64{0.005, 0.05, 0.1, 0.3, 1, 5, 30},
		}, []string{"method", "route"}),
	}
	m.registry.MustRegister(
		m.ScansTotal, m.ScanDuration, m.Videos,
		m.JobsTotal, m.JobsActive,
		m.HTTPRequests, m.HTTPRequestTime,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry backing Handler.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveScan records a completed scan. Suitable as a library.ScanHandler.
func (m *Metrics) ObserveScan(r library.ScanResult) {
	m.ScansTotal.Inc()
	m.ScanDuration.Observe(r.Duration.Seconds())
	m.Videos.Set(float64(r.Seen))
}

// ObserveJob records a job status change. Suitable as a jobs.ChangeHandler.
func (m *Metrics) ObserveJob(c jobs.Change) {
	if c.Progress || c.From == c.Job.Status {
		return
	}
	kind := string(c.Job.Kind)
	m.JobsTotal.WithLabelValues(kind, string(c.Job.Status)).Inc()
	switch {
	case c.Job.Status == jobs.StatusDownloading:
		m.JobsActive.WithLabelValues(kind).Inc()
	case c.From == jobs.StatusDownloading:
		m.JobsActive.WithLabelValues(kind).Dec()
	}
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestTime.WithLabelValues(method, route).Observe(d.Seconds())
}
