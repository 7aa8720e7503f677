package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stash_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stash_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stash_http_requests_in_flight",
			Help: "Current number of HTTP requests being served",
		},
	)

	// File lifecycle metrics
	FilesUploaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stash_files_uploaded_total",
			Help: "Total number of files uploaded",
		},
	)

	FilesDownloaded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stash_files_downloaded_total",
			Help: "Total number of file downloads",
		},
		[]string{"via"}, // "session" or "share"
	)

	FilesDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stash_files_deleted_total",
			Help: "Total number of files deleted",
		},
	)

	SharesEnabled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stash_shares_enabled_total",
			Help: "Total number of share links enabled",
		},
	)

	SharesDisabled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stash_shares_disabled_total",
			Help: "Total number of share links disabled",
		},
	)

	// Account metrics
	AccountsDeleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stash_accounts_deleted_total",
			Help: "Total number of accounts deleted",
		},
		[]string{"purged"}, // "true" when physical files were purged too
	)

	// Authentication metrics
	LoginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stash_login_attempts_total",
			Help: "Total number of login attempts",
		},
		[]string{"status"},
	)

	RegisterAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stash_register_attempts_total",
			Help: "Total number of registration attempts",
		},
		[]string{"status"},
	)
)

// RecordHTTPRequest records metrics for an HTTP request
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	statusStr := httpStatusToString(status)
	HTTPRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	HTTPRequestDuration.WithLabelValues(method, path, statusStr).Observe(duration.Seconds())
}

// httpStatusToString converts HTTP status code to a class label
func httpStatusToString(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	}
	return "unknown"
}
