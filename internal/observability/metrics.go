package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "channelchat_http_requests_total",
			Help: "Total number of HTTP requests processed by the chat service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "channelchat_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	wsActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "channelchat_ws_active_connections",
			Help: "Number of active websocket connections.",
		},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "channelchat_ws_events_total",
			Help: "Total number of websocket frames handled, by frame type.",
		},
		[]string{"event"},
	)
	broadcastFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "channelchat_broadcast_failures_total",
			Help: "Total number of transports evicted after a failed send.",
		},
	)
	notificationDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "channelchat_notification_decisions_total",
			Help: "Total number of delayed notification decisions, by outcome.",
		},
		[]string{"outcome"},
	)
	presenceSweepMarkedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "channelchat_presence_sweep_marked_total",
			Help: "Total number of users marked offline by the presence sweep.",
		},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "channelchat_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		wsActiveConnections,
		wsEventsTotal,
		broadcastFailuresTotal,
		notificationDecisionsTotal,
		presenceSweepMarkedTotal,
		amqpPublishErrorsTotal,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func IncWSActive() {
	wsActiveConnections.Inc()
}

func DecWSActive() {
	wsActiveConnections.Dec()
}

func IncWSEvent(event string) {
	wsEventsTotal.WithLabelValues(event).Inc()
}

func IncBroadcastFailure() {
	broadcastFailuresTotal.Inc()
}

// Notification decision outcomes.
const (
	NotifyOutcomeLive        = "delivered_live"
	NotifyOutcomePush        = "published_push"
	NotifyOutcomeRead        = "suppressed_read"
	NotifyOutcomeSettings    = "suppressed_settings"
	NotifyOutcomeGone        = "message_gone"
	NotifyOutcomeUnreachable = "unreachable"
)

func IncNotificationDecision(outcome string) {
	notificationDecisionsTotal.WithLabelValues(outcome).Inc()
}

func AddPresenceSweepMarked(n int) {
	presenceSweepMarkedTotal.Add(float64(n))
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
