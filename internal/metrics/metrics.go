// Package metrics exposes Prometheus instrumentation for the relay, the
// archive export pipeline, and the sender-key ratchet, following the
// parent backend's promauto registration style.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Relay metrics. The relay only ever sees opaque ciphertext frames, so
	// these are the full extent of what it can observe.
	RelayConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "haven_relay_connections",
			Help: "Number of active relay WebSocket connections",
		},
		[]string{"server_id"},
	)

	RelayFramesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "haven_relay_frames_total",
			Help: "Total number of opaque ciphertext frames relayed",
		},
		[]string{"server_id", "direction"}, // direction: inbound, outbound
	)

	RelayFanOutLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "haven_relay_fanout_latency_seconds",
			Help:    "Time to fan a group frame out to all subscribed members",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		},
	)

	SKDMDistributionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "haven_skdm_distributions_total",
			Help: "Total number of sender-key distribution messages sealed and relayed",
		},
	)

	// HTTP API metrics.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "haven_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "haven_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Rate limiting metrics.
	RateLimitRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "haven_rate_limit_requests_total",
			Help: "Total number of requests evaluated against a rate limit",
		},
		[]string{"endpoint", "tier", "result"}, // result: allowed, denied
	)

	RateLimitGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "haven_rate_limit_current_requests",
			Help: "Current number of requests counted in the active rate limit window",
		},
		[]string{"tier", "mode"}, // tier: ip/user/endpoint/global, mode: normal/strict
	)

	// Archive export metrics.
	ArchiveExportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "haven_archive_exports_total",
			Help: "Total number of .haven archives built",
		},
		[]string{"scope", "result"}, // result: success, failure
	)

	ArchiveExportSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "haven_archive_export_size_bytes",
			Help:    "Size of built .haven archives in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 12),
		},
	)

	ArchiveExportLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "haven_archive_export_latency_seconds",
			Help:    "Time to build a .haven archive from request to signed output",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		},
	)

	ArchiveVerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "haven_archive_verifications_total",
			Help: "Total number of archive verification runs",
		},
		[]string{"result"}, // valid, invalid
	)

	// Attachment blobstore metrics.
	AttachmentUploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "haven_attachment_uploads_total",
			Help: "Total number of attachments stored in the blobstore",
		},
		[]string{"result"},
	)

	AttachmentUploadSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "haven_attachment_upload_size_bytes",
			Help:    "Size of uploaded attachments in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
		},
	)
)

// Middleware wraps an HTTP handler with request count and latency
// instrumentation.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: 200}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordRelayFrame records one opaque frame crossing the relay.
func RecordRelayFrame(serverID, direction string) {
	RelayFramesTotal.WithLabelValues(serverID, direction).Inc()
}

// RecordRateLimitRequest records a rate-limit decision.
func RecordRateLimitRequest(endpoint, tier, result string) {
	RateLimitRequests.WithLabelValues(endpoint, tier, result).Inc()
}

// UpdateRateLimitGauge sets the current in-window request count.
func UpdateRateLimitGauge(tier, mode string, value float64) {
	RateLimitGauge.WithLabelValues(tier, mode).Set(value)
}

// RecordArchiveExport records the outcome, size, and latency of a build.
func RecordArchiveExport(scope string, success bool, size int64, latency time.Duration) {
	result := "failure"
	if success {
		result = "success"
	}
	ArchiveExportsTotal.WithLabelValues(scope, result).Inc()
	if success {
		ArchiveExportSize.Observe(float64(size))
	}
	ArchiveExportLatency.Observe(latency.Seconds())
}

// RecordArchiveVerification records the outcome of a Verify() run.
func RecordArchiveVerification(valid bool) {
	result := "invalid"
	if valid {
		result = "valid"
	}
	ArchiveVerificationsTotal.WithLabelValues(result).Inc()
}

// RecordAttachmentUpload records an attachment write to the blobstore.
func RecordAttachmentUpload(success bool, size int64) {
	result := "failure"
	if success {
		result = "success"
	}
	AttachmentUploadsTotal.WithLabelValues(result).Inc()
	if success {
		AttachmentUploadSize.Observe(float64(size))
	}
}
