// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	notificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_notifications_total",
			Help: "Assignment and account notifications by channel and result",
		},
		[]string{"channel", "result"},
	)

	leadsImported = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_leads_imported_total",
			Help: "Imported lead rows by outcome",
		},
		[]string{"result"},
	)

	reportCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_report_cache_total",
			Help: "Report cache lookups by report and result",
		},
		[]string{"report", "result"},
	)
)

func ObserveHTTP(method, path, status string, seconds float64) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(seconds)
}

// RecordNotification counts one delivery attempt. result is "sent", "skipped" or "failed".
func RecordNotification(channel, result string) {
	notificationsTotal.WithLabelValues(channel, result).Inc()
}

func RecordImport(created, skipped int) {
	leadsImported.WithLabelValues("created").Add(float64(created))
	leadsImported.WithLabelValues("skipped").Add(float64(skipped))
}

// RecordCache counts a report cache lookup. result is "hit", "miss" or "error".
func RecordCache(report, result string) {
	reportCache.WithLabelValues(report, result).Inc()
}
