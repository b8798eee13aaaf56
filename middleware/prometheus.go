package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsNamespace prefixes every series the service exports.
const MetricsNamespace = "site"

var httpLabels = []string{"method", "route", "code"}

var (
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: MetricsNamespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds.",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, httpLabels)

	requestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route and status.",
	}, httpLabels)

	requestsInFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Subsystem: "http",
		Name:      "requests_in_flight",
		Help:      "HTTP requests currently being served.",
	}, []string{"method", "route"})

	responseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: MetricsNamespace,
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "Size of HTTP responses in bytes.",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 5),
	}, httpLabels)

	serverErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Subsystem: "http",
		Name:      "server_errors_total",
		Help:      "HTTP responses with a 5xx status.",
	}, httpLabels)
)

// unmeteredPaths are probe and scrape endpoints kept out of request metrics.
var unmeteredPaths = []string{"/health", "/ready", "/metrics"}

func shouldCollectMetrics(path string) bool {
	for _, skip := range unmeteredPaths {
		if strings.HasPrefix(path, skip) {
			return false
		}
	}
	return true
}

// routeLabel is the matched route template, so /users/profile/:section is
// one series; unmatched requests share a single label.
func routeLabel(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unmatched"
}

// PrometheusMiddleware records request metrics labelled by route template.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !shouldCollectMetrics(c.Request.URL.Path) {
			c.Next()
			return
		}

		start := time.Now()
		method, route := c.Request.Method, routeLabel(c)

		inFlight := requestsInFlight.WithLabelValues(method, route)
		inFlight.Inc()
		defer inFlight.Dec()

		c.Next()

		status := c.Writer.Status()
		labels := []string{method, route, strconv.Itoa(status)}
		requestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
		requestTotal.WithLabelValues(labels...).Inc()
		responseSize.WithLabelValues(labels...).Observe(float64(max(c.Writer.Size(), 0)))
		if status >= 500 {
			serverErrors.WithLabelValues(labels...).Inc()
		}
	}
}
