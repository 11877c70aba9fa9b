// Package observability holds the Prometheus collectors shared across the service.
package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	activityWrites = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "timetracker",
		Subsystem: "activities",
		Name:      "writes_total",
		Help:      "Number of activity writes committed, labeled by operation.",
	}, []string{"op"})

	validationRejections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "timetracker",
		Subsystem: "activities",
		Name:      "validation_rejections_total",
		Help:      "Number of activity writes rejected before persistence, labeled by reason.",
	}, []string{"reason"})

	activityPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "timetracker",
		Subsystem: "persistence",
		Name:      "last_activity_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent activity write committed to storage.",
	})

	sessionsIssued = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "timetracker",
		Subsystem: "sessions",
		Name:      "issued_total",
		Help:      "Number of anonymous sessions created.",
	})

	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "timetracker",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Number of HTTP requests served, labeled by route, method and status.",
	}, []string{"route", "method", "status"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "timetracker",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route and method.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"route", "method"})
)

func init() {
	prometheus.MustRegister(activityWrites, validationRejections, activityPersistGauge, sessionsIssued, httpRequests, httpDuration)
}

// RecordActivityWrite counts a committed create, update or delete.
func RecordActivityWrite(op string) {
	activityWrites.WithLabelValues(op).Inc()
}

// RecordValidationRejection counts a write refused before reaching storage.
func RecordValidationRejection(reason string) {
	validationRejections.WithLabelValues(reason).Inc()
}

// RecordActivityPersisted updates the persistence watermark gauge.
func RecordActivityPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	activityPersistGauge.Set(float64(ts.Unix()))
}

// RecordSessionIssued counts a newly created anonymous session.
func RecordSessionIssued() {
	sessionsIssued.Inc()
}

// ObserveHTTPRequest records a served request.
func ObserveHTTPRequest(route, method string, status int, elapsed time.Duration) {
	httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}
