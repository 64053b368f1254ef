// metrics.go — Prometheus HTTP метрики rtf-converter.
// Регистрирует метрики: rc_http_requests_total, rc_http_request_duration_seconds.
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
			Name: "rc_http_requests_total",
			Help: "Общее количество HTTP-запросов к rtf-converter",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rc_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к rtf-converter в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			path := normalizePath(r.URL.Path)

			rec := newStatusRecorder(w)
			next.ServeHTTP(rec, r)

			httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rec.statusCode)).Inc()
			httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

// templatePrefix — префикс путей конкретного шаблона.
const templatePrefix = "/template/"

// normalizePath заменяет идентификатор шаблона на {id}, чтобы не раздувать
// кардинальность метрик. Неизвестные пути сворачиваются в "other".
// /template/a1b2c3d4-.../content → /template/{id}/content
func normalizePath(path string) string {
	switch path {
	case "/convert", "/template", "/healthcheck",
		"/health/live", "/health/ready", "/metrics", "/openapi.yaml":
		return path
	}

	if rest, ok := strings.CutPrefix(path, templatePrefix); ok && rest != "" {
		id, suffix, _ := strings.Cut(rest, "/")
		if id != "" {
			switch suffix {
			case "":
				return templatePrefix + "{id}"
			case "content":
				return templatePrefix + "{id}/content"
			}
		}
	}

	return "other"
}
