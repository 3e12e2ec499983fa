// Package metrics holds the Prometheus collectors of the service and the
// gin middleware feeding them.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Assignment outcomes
const (
	OutcomeAssigned = "assigned"
	OutcomeCleared  = "cleared"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "battdevy_http_requests_total",
			Help: "Total number of HTTP requests by route, method and status.",
		},
		[]string{"route", "method", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "battdevy_http_request_duration_seconds",
			Help:    "Latency of HTTP request handling in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	assignmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "battdevy_assignments_total",
			Help: "Battery-to-device assignments by outcome.",
		},
		[]string{"outcome"},
	)

	remindersSentTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "battdevy_reminders_sent_total",
			Help: "Battery end-of-life reminders delivered.",
		},
	)
)

func init() {
	prometheus.MustRegister(Collectors()...)
}

// Collectors returns all metric collectors of the service.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		httpRequestsTotal,
		httpRequestDuration,
		assignmentsTotal,
		remindersSentTotal,
	}
}

// ObserveAssignment counts one assignment attempt.
func ObserveAssignment(outcome string) {
	assignmentsTotal.WithLabelValues(outcome).Inc()
}

// ObserveReminder counts one delivered reminder.
func ObserveReminder() {
	remindersSentTotal.Inc()
}

// Middleware records request count and latency per matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the default registry.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
