// metrics.go — Prometheus HTTP метрики Media Server.
// Регистрирует метрики: ms_http_requests_total, ms_http_request_duration_seconds.
// Бизнес-метрики (ms_media_operations_total, ms_media_upload_bytes_total)
// обновляются из сервисного слоя.
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
			Name: "ms_http_requests_total",
			Help: "Общее количество HTTP-запросов к Media Server",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ms_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к Media Server в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Бизнес-метрики (экспортируются для обновления из сервисного слоя)
var (
	// OperationsTotal — общее количество операций с медиафайлами.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ms_media_operations_total",
			Help: "Общее количество операций с медиафайлами",
		},
		[]string{"operation", "result"},
	)

	// UploadBytesTotal — суммарный объём принятых при загрузке данных.
	UploadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ms_media_upload_bytes_total",
			Help: "Суммарный объём принятых при загрузке данных в байтах",
		},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
// Записывает количество запросов и длительность для каждого endpoint.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Нормализуем путь для лейблов метрик
			// (имя файла заменяется на {filename} для предотвращения кардинальности)
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

// normalizePath заменяет имя файла в пути на {filename} для предотвращения
// взрывного роста кардинальности метрик.
// /media/0f3c...9a.jpg → /media/{filename}
func normalizePath(path string) string {
	switch {
	case path == "/":
		return "/"
	case path == "/health/live":
		return "/health/live"
	case path == "/health/ready":
		return "/health/ready"
	case path == "/metrics":
		return "/metrics"
	case path == "/upload":
		return "/upload"
	case path == "/media":
		return "/media"
	case strings.HasPrefix(path, "/media/"):
		return "/media/{filename}"
	}
	return path
}
