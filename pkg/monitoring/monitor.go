package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	SessionsStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "training_sessions_started_total",
			Help: "Training sessions started",
		},
		[]string{"type"},
	)

	SessionsFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "training_sessions_finished_total",
			Help: "Training sessions that left the active state",
		},
		[]string{"status", "grade"},
	)

	PhaseScores = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "training_phase_score",
			Help:    "Distribution of computed phase scores",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
		[]string{"phase"},
	)

	WSConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "training_ws_connections",
			Help: "Open realtime connections",
		},
	)

	WSMessageCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "training_ws_messages_total",
			Help: "Realtime messages by event and direction",
		},
		[]string{"event", "direction"},
	)
)

var initOnce sync.Once

func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDuration,
			SessionsStarted,
			SessionsFinished,
			PhaseScores,
			WSConnections,
			WSMessageCounter,
		)
	})
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
