// metrics.go — Prometheus HTTP метрики fileattach.
// Регистрирует метрики: fa_http_requests_total, fa_http_request_duration_seconds.
// Нормализация путей предотвращает взрывной рост кардинальности.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP метрики fileattach
var (
	// httpRequestsTotal — общее количество HTTP-запросов.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fa_http_requests_total",
			Help: "Общее количество HTTP-запросов к fileattach",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fa_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к fileattach в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
// Записывает количество запросов и длительность для каждого endpoint.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Идентификаторы файлов заменяются на {id}
			normalizedPath := normalizePath(r.URL.Path)

			wrapped := newResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(wrapped.statusCode)

			httpRequestsTotal.WithLabelValues(r.Method, normalizedPath, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, normalizedPath).Observe(duration)
		})
	}
}

// normalizePath заменяет идентификатор файла в пути на {id}.
// /api/files/a1b2c3d4-... → /api/files/{id}
// /api/files/a1b2c3d4-.../download → /api/files/{id}/download
// Неизвестные пути схлопываются в "other".
func normalizePath(path string) string {
	switch path {
	case "/health/live", "/health/ready", "/metrics",
		"/api/openapi.json", "/api/files", "/api/files/upload":
		return path
	}

	const filesPrefix = "/api/files/"
	rest, ok := strings.CutPrefix(path, filesPrefix)
	if !ok || rest == "" {
		return "other"
	}

	if _, suffix, found := strings.Cut(rest, "/"); found {
		if suffix == "download" {
			return "/api/files/{id}/download"
		}
		return "other"
	}
	return "/api/files/{id}"
}
