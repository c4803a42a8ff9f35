package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	initOnce sync.Once

	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "assetgate",
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "assetgate",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	assetsStored = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "assetgate",
		Name:      "assets_stored_total",
		Help:      "Assets committed to the content store.",
	}, []string{"backend", "kind"})

	ingestFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "assetgate",
		Name:      "ingest_failures_total",
		Help:      "Ingest failures by pipeline stage.",
	}, []string{"stage"})

	storeWrites = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "assetgate",
		Name:      "store_write_duration_seconds",
		Help:      "Latency of a single content store write, including the revision probe.",
		Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	}, []string{"backend"})
)

// InitMetrics registers the collectors with the default registry. Safe to call repeatedly.
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, assetsStored, ingestFailures, storeWrites)
	})
}

// Middleware records request counts and latency per matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Register attaches the Prometheus metrics endpoint to the router.
func Register(router *gin.Engine, path string) {
	router.GET(path, gin.WrapH(promhttp.Handler()))
}

// ObserveStored counts one committed asset.
func ObserveStored(backend, kind string) {
	assetsStored.WithLabelValues(backend, kind).Inc()
}

// ObserveFailure counts one failed ingest at the given stage.
func ObserveFailure(stage string) {
	ingestFailures.WithLabelValues(stage).Inc()
}

// ObserveWrite records the duration of one store write.
func ObserveWrite(backend string, d time.Duration) {
	storeWrites.WithLabelValues(backend).Observe(d.Seconds())
}
