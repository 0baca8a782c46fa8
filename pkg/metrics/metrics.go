package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the automation engine
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec

	// Engine metrics
	EventsPublished  *prometheus.CounterVec
	EventsDropped    prometheus.Counter
	TriggerMatches   *prometheus.CounterVec
	JobsScheduled    *prometheus.CounterVec
	JobsDispatched   *prometheus.CounterVec
	JobsFailed       *prometheus.CounterVec
	JobsCancelled    prometheus.Counter
	DispatchDuration *prometheus.HistogramVec
	ScanDuration     prometheus.Histogram
	ScanFireFailures prometheus.Counter
	PendingJobs      prometheus.Gauge
}

// New creates and registers all Prometheus metrics
func New() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		EventsPublished: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "automation_events_published_total",
				Help: "Total number of business events published to the bus",
			},
			[]string{"kind"},
		),
		EventsDropped: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "automation_events_dropped_total",
				Help: "Events dropped because the bus queue was full",
			},
		),
		TriggerMatches: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "automation_trigger_matches_total",
				Help: "Total number of trigger matches",
			},
			[]string{"trigger_kind"},
		),
		JobsScheduled: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "automation_jobs_scheduled_total",
				Help: "Total number of scheduled action jobs",
			},
			[]string{"action_kind"},
		),
		JobsDispatched: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "automation_jobs_dispatched_total",
				Help: "Total number of successfully dispatched jobs",
			},
			[]string{"action_kind"},
		),
		JobsFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "automation_jobs_failed_total",
				Help: "Total number of jobs that exhausted their retries",
			},
			[]string{"action_kind"},
		),
		JobsCancelled: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "automation_jobs_cancelled_total",
				Help: "Jobs cancelled because their workflow was deleted or deactivated",
			},
		),
		DispatchDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "automation_dispatch_duration_seconds",
				Help:    "Executor call duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"action_kind"},
		),
		ScanDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "automation_scan_duration_seconds",
				Help:    "Duration of periodic trigger scans in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
			},
		),
		ScanFireFailures: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "automation_scan_fire_failures_total",
				Help: "Scan-trigger fires whose actions could not be scheduled",
			},
		),
		PendingJobs: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "automation_pending_jobs",
				Help: "Number of jobs currently pending dispatch",
			},
		),
	}
}
