// Package middleware contains shared Gin middleware for the HTTP layer.
//
// This file holds the Prometheus collectors: generic HTTP traffic metrics
// plus a small set of business counters for the order lifecycle. Path labels
// always use the registered Gin route rather than the raw URL, and the
// transition labels come from the fixed status vocabulary, so every label set
// here has bounded cardinality.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	// No status label here; latency histograms get expensive fast.
	httpLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	httpInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_inflight",
			Help: "Current number of in-flight HTTP requests.",
		},
	)

	// Buckets tuned for JSON payloads: most responses are a single order or
	// one page of orders, well under 50KiB.
	httpRespSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_response_size_bytes",
			Help: "Size of HTTP responses in bytes.",
			Buckets: []float64{
				200, 500, 1 << 10, 2 << 10, 5 << 10,
				10 << 10, 25 << 10, 50 << 10,
				100 << 10, 250 << 10, 500 << 10,
				1 << 20, 2 << 20, 5 << 20,
			},
		},
		[]string{"method", "path"},
	)

	orderTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_order_transitions_total",
			Help: "Order status transition attempts by requested status and outcome.",
		},
		[]string{"requested", "outcome"},
	)

	paymentVerifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_payment_verifications_total",
			Help: "Payment verification attempts by outcome.",
		},
		[]string{"outcome"},
	)

	lockConflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_lock_conflicts_total",
			Help: "Optimistic lock conflicts surfaced to clients, by route.",
		},
		[]string{"path"},
	)
)

func init() {
	prometheus.MustRegister(
		httpReqs, httpLat, httpInflight, httpRespSize,
		orderTransitions, paymentVerifications, lockConflicts,
	)
}

// ObserveTransition records one status transition attempt. Outcome is one of
// "applied", "rejected", "conflict".
func ObserveTransition(requested, outcome string) {
	orderTransitions.WithLabelValues(requested, outcome).Inc()
}

// ObserveVerification records one payment verification attempt. Outcome is
// one of "verified", "rejected", "failed".
func ObserveVerification(outcome string) {
	paymentVerifications.WithLabelValues(outcome).Inc()
}

// ObserveLockConflict records an optimistic lock rejection on the given route.
func ObserveLockConflict(path string) {
	lockConflicts.WithLabelValues(path).Inc()
}

// Metrics instruments every request: counts by method/path/status, latency and
// response size histograms, and the in-flight gauge. Unmatched routes (404s)
// fall back to the raw URL path for the path label.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInflight.Inc()
		defer httpInflight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		httpReqs.WithLabelValues(method, path, status).Inc()
		httpLat.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		if size := c.Writer.Size(); size >= 0 {
			httpRespSize.WithLabelValues(method, path).Observe(float64(size))
		}
	}
}
