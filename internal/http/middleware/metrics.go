package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// unmatchedPath replaces the raw URL of requests that hit no route, so
// scanners probing random paths cannot blow up label cardinality.
const unmatchedPath = "<unmatched>"

var (
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

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
)

func init() {
	prometheus.MustRegister(httpReqs, httpLat, httpInflight)
}

// Metrics instruments requests by method, route template and status.
// Upgraded websocket connections are counted but excluded from the latency
// histogram since their duration is the session length.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInflight.Inc()
		defer httpInflight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = unmatchedPath
		}
		method := c.Request.Method
		status := c.Writer.Status()
		httpReqs.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
		if status != 101 && c.GetHeader("Upgrade") == "" {
			httpLat.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		}
	}
}
