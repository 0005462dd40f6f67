// metrics.go — Prometheus HTTP метрики filehub.
// Регистрирует метрики: fh_http_requests_total, fh_http_request_duration_seconds.
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
			Name: "fh_http_requests_total",
			Help: "Общее количество HTTP-запросов к filehub",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fh_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к filehub в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Бизнес-метрики (экспортируются для обновления из сервисного слоя)
var (
	// OperationsTotal — общее количество файловых операций.
	// operation: upload, download, delete, recover; result: success, rejected, error.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fh_operations_total",
			Help: "Общее количество файловых операций",
		},
		[]string{"operation", "result"},
	)

	// UploadBytesTotal — объём успешно загруженных данных.
	UploadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fh_upload_bytes_total",
			Help: "Общий объём успешно загруженных файлов в байтах",
		},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
// Записывает количество запросов и длительность для каждого endpoint.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Нормализуем путь для лейблов метрик (id и ключи → плейсхолдеры)
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

// normalizePath заменяет идентификаторы в пути на плейсхолдеры
// для предотвращения роста кардинальности метрик.
//
//	/api/files/65f1c0...        → /api/files/{id}
//	/api/files/65f1c0.../download → /api/files/{id}/download
//	/uploads/1771686245123-a1b2c3d4.pdf → /uploads/{key}
//	/ui/files/65f1c0.../raw     → /ui/files/{id}/raw
//	/static/app.css             → /static/{asset}
func normalizePath(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")

	switch {
	case len(segments) >= 3 && segments[1] == "files" && (segments[0] == "api" || segments[0] == "ui"):
		if len(segments) > 4 {
			return "other"
		}
		segments[2] = "{id}"
	case len(segments) == 2 && segments[0] == "uploads":
		segments[1] = "{key}"
	case len(segments) == 2 && segments[0] == "static":
		segments[1] = "{asset}"
	case len(segments) > 2 && (segments[0] == "uploads" || segments[0] == "static"):
		return "other"
	}

	return "/" + strings.Join(segments, "/")
}
