// metrics.go — Prometheus метрики Blob Store.
// HTTP: bs_http_requests_total, bs_http_request_duration_seconds.
// Бизнес-метрики обновляются из сервисного слоя.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP метрики
var (
	// httpRequestsTotal — общее количество HTTP-запросов.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bs_http_requests_total",
			Help: "Общее количество HTTP-запросов к Blob Store",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bs_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к Blob Store в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Бизнес-метрики (экспортируются для обновления из сервисного слоя)
var (
	// OperationsTotal — количество операций над blob (upload, get_info, get_content, delete).
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bs_operations_total",
			Help: "Общее количество операций над blob",
		},
		[]string{"operation", "result"},
	)

	// DedupHitsTotal — загрузки, завершённые без записи байтов (дедупликация).
	DedupHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bs_dedup_hits_total",
			Help: "Количество загрузок, обслуженных дедупликацией",
		},
	)

	// StoredBytesTotal — объём байтов, записанных в объектное хранилище.
	StoredBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bs_stored_bytes_total",
			Help: "Объём данных, записанных в объектное хранилище, в байтах",
		},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
// Записывает количество запросов и длительность для каждого endpoint.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			normalizedPath := normalizePath(r.URL.Path)

			wrapped := newMetricsResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(wrapped.statusCode)

			httpRequestsTotal.WithLabelValues(r.Method, normalizedPath, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, normalizedPath).Observe(duration)
		})
	}
}

// metricsResponseWriter — обёртка для перехвата статус-кода.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap позволяет http.ResponseController получить доступ к оригинальному ResponseWriter.
func (rw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// normalizePath заменяет ID blob в пути на {id} для предотвращения
// взрывного роста кардинальности метрик.
// /v1/blobs/a1b2c3d4-... → /v1/blobs/{id}
// /v1/blobs/a1b2c3d4-.../content → /v1/blobs/{id}/content
func normalizePath(path string) string {
	const blobsPrefix = "/v1/blobs/"
	if !strings.HasPrefix(path, blobsPrefix) || len(path) == len(blobsPrefix) {
		return path
	}

	rest := path[len(blobsPrefix):]
	if _, suffix, ok := strings.Cut(rest, "/"); ok {
		if suffix == "content" {
			return "/v1/blobs/{id}/content"
		}
		return "/v1/blobs/{id}/other"
	}
	return "/v1/blobs/{id}"
}
