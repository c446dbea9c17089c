// Package metrics provides Prometheus metrics for the Product-Images server.
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
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "productimages_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "productimages_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Content transfer metrics
	contentBytesDownloaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "productimages_content_bytes_downloaded_total",
			Help: "Total bytes downloaded from content endpoint",
		},
	)

	contentBytesUploaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "productimages_content_bytes_uploaded_total",
			Help: "Total bytes uploaded to content endpoint",
		},
	)

	contentDownloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "productimages_content_downloads_total",
			Help: "Total number of content downloads",
		},
		[]string{"status"},
	)

	contentUploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "productimages_content_uploads_total",
			Help: "Total number of content uploads",
		},
		[]string{"status"},
	)

	// Tree metrics
	treeSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "productimages_tree_size",
			Help: "Number of nodes in the namespace tree",
		},
	)

	treeRefreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "productimages_tree_refresh_duration_seconds",
			Help:    "Time to hydrate the namespace tree from the database",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Engine metrics
	engineOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "productimages_engine_ops_total",
			Help: "Total engine operations by outcome",
		},
		[]string{"op", "outcome"},
	)

	// Auth metrics
	authAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "productimages_auth_attempts_total",
			Help: "Total authentication attempts",
		},
		[]string{"result"},
	)

	// Database metrics
	dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "productimages_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query"},
	)

	dbConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "productimages_db_connections_open",
			Help: "Number of open database connections",
		},
	)

	// SSE metrics
	sseConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "productimages_sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)

	sseEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "productimages_sse_events_total",
			Help: "Total SSE events published",
		},
		[]string{"type"},
	)

	// Storage metrics
	storageOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "productimages_storage_operation_duration_seconds",
			Help:    "Storage backend operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)

	storageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "productimages_storage_operations_total",
			Help: "Total storage backend operations",
		},
		[]string{"backend", "operation", "status"},
	)

	// Media pipeline metrics
	mediaProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "productimages_media_processed_total",
			Help: "Total images run through the media pipeline",
		},
		[]string{"status"},
	)

	mediaQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "productimages_media_queue_depth",
			Help: "Images waiting in the media pipeline queue",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordContentDownload records a content download.
func RecordContentDownload(bytes int64, success bool) {
	contentBytesDownloaded.Add(float64(bytes))
	status := "success"
	if !success {
		status = "error"
	}
	contentDownloadsTotal.WithLabelValues(status).Inc()
}

// RecordContentUpload records a content upload.
func RecordContentUpload(bytes int64, success bool) {
	contentBytesUploaded.Add(float64(bytes))
	status := "success"
	if !success {
		status = "error"
	}
	contentUploadsTotal.WithLabelValues(status).Inc()
}

// SetTreeSize sets the current namespace tree size.
func SetTreeSize(size int64) {
	treeSize.Set(float64(size))
}

// RecordTreeRefresh records a tree hydration duration.
func RecordTreeRefresh(duration time.Duration) {
	treeRefreshDuration.Observe(duration.Seconds())
}

// RecordEngineOp records an engine operation and its outcome ("ok" or an
// error kind).
func RecordEngineOp(op, outcome string) {
	engineOpsTotal.WithLabelValues(op, outcome).Inc()
}

// RecordAuthAttempt records an authentication attempt.
func RecordAuthAttempt(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	authAttemptsTotal.WithLabelValues(result).Inc()
}

// RecordDBQuery records a database query duration.
func RecordDBQuery(query string, duration time.Duration) {
	dbQueryDuration.WithLabelValues(query).Observe(duration.Seconds())
}

// SetDBConnectionsOpen sets the number of open database connections.
func SetDBConnectionsOpen(count int) {
	dbConnectionsOpen.Set(float64(count))
}

// SetSSEConnectionsActive sets the number of active SSE connections.
func SetSSEConnectionsActive(count int64) {
	sseConnectionsActive.Set(float64(count))
}

// RecordSSEEvent records an SSE event publication.
func RecordSSEEvent(eventType string) {
	sseEventsTotal.WithLabelValues(eventType).Inc()
}

// RecordStorageOp records a storage backend operation.
func RecordStorageOp(backend, operation string, duration time.Duration, success bool) {
	storageOperationDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
	status := "success"
	if !success {
		status = "error"
	}
	storageOperationsTotal.WithLabelValues(backend, operation, status).Inc()
}

// RecordMediaProcessed records a media pipeline result.
func RecordMediaProcessed(status string) {
	mediaProcessedTotal.WithLabelValues(status).Inc()
}

// SetMediaQueueDepth sets the media pipeline queue depth.
func SetMediaQueueDepth(depth int64) {
	mediaQueueDepth.Set(float64(depth))
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware returns HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		RecordHTTPRequest(r.Method, r.URL.Path, rw.statusCode, time.Since(start))
	})
}
