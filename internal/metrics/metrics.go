package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ReportsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "disaster_reports_created_total",
		Help: "Reports created, by category and source.",
	}, []string{"category", "source"})

	Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "disaster_transitions_total",
		Help: "Report state transitions, by action and result.",
	}, []string{"action", "result"})

	NotificationsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "disaster_notifications_created_total",
		Help: "Notifications written by fan-out, by type.",
	}, []string{"type"})

	FanoutFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "disaster_fanout_failures_total",
		Help: "Failed best-effort side effects, by kind.",
	}, []string{"kind"})

	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "disaster_events_published_total",
		Help: "Realtime events handed to a sink, by sink and result.",
	}, []string{"sink", "result"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP requests, by method, route and status.",
	}, []string{"method", "route", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency, by method and route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)

const (
	ResultOK       = "ok"
	ResultError    = "error"
	ResultConflict = "conflict"
	ResultRetry    = "retry"
)

// Middleware пишет счетчик и гистограмму по шаблону маршрута, а не по сырому пути
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		HTTPDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
