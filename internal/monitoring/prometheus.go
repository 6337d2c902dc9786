// Package monitoring exposes the sentinel's self-monitoring endpoint and
// the request/store collectors shared by the HTTP layer and pkg/cache.
//
// Usage:
//
//	router := gin.New()
//	router.Use(monitoring.HTTPMetricsMiddleware())
//	monitoring.SetupPrometheusMetrics(router, version)
//
// Available Metrics:
//
// HTTP Metrics:
//   - mirador_sentinel_http_requests_total{method, endpoint, status_code}
//   - mirador_sentinel_http_request_duration_seconds{method, endpoint}
//   - mirador_sentinel_active_connections
//
// Store Metrics:
//   - mirador_sentinel_cache_operations_total{operation, result}
//
// Error Metrics:
//   - mirador_sentinel_errors_total{type, component}
//
// Build Info:
//   - mirador_sentinel_build_info{version, component, go_version}
//
// Notification and uptime collectors live in internal/metrics.
package monitoring

import (
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirador_sentinel_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mirador_sentinel_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	cacheOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirador_sentinel_cache_operations_total",
			Help: "Total number of key-value store operations",
		},
		[]string{"operation", "result"}, // result: hit, miss, success, error
	)

	activeConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mirador_sentinel_active_connections",
			Help: "Number of in-flight HTTP requests",
		},
	)

	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirador_sentinel_errors_total",
			Help: "Total number of errors",
		},
		[]string{"type", "component"}, // type: http, cache
	)
)

// SetupPrometheusMetrics registers the collectors above on the default
// registry and mounts GET /metrics.
func SetupPrometheusMetrics(router gin.IRoutes, version string) {
	// Registration errors mean the collector is already registered
	// (e.g. several servers in one test binary).
	_ = prometheus.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "mirador_sentinel_build_info",
		Help: "Build information for mirador-sentinel",
		ConstLabels: prometheus.Labels{
			"version":    version,
			"component":  "mirador-sentinel",
			"go_version": runtime.Version(),
		},
	}, func() float64 { return 1 }))

	_ = prometheus.Register(httpRequestsTotal)
	_ = prometheus.Register(httpRequestDuration)
	_ = prometheus.Register(cacheOperationsTotal)
	_ = prometheus.Register(activeConnections)
	_ = prometheus.Register(errorsTotal)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// HTTPMetricsMiddleware collects HTTP request metrics
func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = normalizeEndpoint(c.Request.URL.Path)
		}

		activeConnections.Inc()
		defer activeConnections.Dec()

		c.Next()

		statusCode := strconv.Itoa(c.Writer.Status())
		httpRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
		httpRequestDuration.WithLabelValues(method, endpoint).Observe(time.Since(start).Seconds())

		if c.Writer.Status() >= 500 {
			errorsTotal.WithLabelValues("http", endpoint).Inc()
		}
	}
}

// RecordCacheOperation records key-value store operation metrics
func RecordCacheOperation(operation, result string) {
	cacheOperationsTotal.WithLabelValues(operation, result).Inc()
	if result == "error" {
		errorsTotal.WithLabelValues("cache", operation).Inc()
	}
}

// normalizeEndpoint collapses numeric path segments so unmatched routes do
// not explode label cardinality: /api/v1/x/123 -> /api/v1/x/:id
func normalizeEndpoint(path string) string {
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if i > 0 && isNumeric(part) {
			parts[i] = ":id"
		}
	}
	return strings.Join(parts, "/")
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
