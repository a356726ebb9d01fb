package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Business metrics
	FollowUpsScheduled prometheus.Counter
	FollowUpsCancelled *prometheus.CounterVec
	EmailsSent         prometheus.Counter
	SendFailures       prometheus.Counter
	OpensRecorded      prometheus.Counter
	ClicksRecorded     prometheus.Counter
	RepliesMatched     *prometheus.CounterVec
}

// New creates a Metrics instance registered on the given registerer. Pass
// prometheus.DefaultRegisterer in main; tests use their own registry.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),

		FollowUpsScheduled: factory.NewCounter(prometheus.CounterOpts{
			Name: "followups_scheduled_total",
			Help: "Total number of follow-up campaigns scheduled",
		}),
		FollowUpsCancelled: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "followups_cancelled_total",
				Help: "Total number of follow-up campaigns cancelled",
			},
			[]string{"reason"}, // parent_replied, lead_replied, explicit, reply_cascade
		),
		EmailsSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "emails_sent_total",
			Help: "Total number of emails delivered by the scheduler tick",
		}),
		SendFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "email_send_failures_total",
			Help: "Total number of transient delivery failures (rows left for retry)",
		}),
		OpensRecorded: factory.NewCounter(prometheus.CounterOpts{
			Name: "email_opens_total",
			Help: "Total number of tracking-pixel opens recorded",
		}),
		ClicksRecorded: factory.NewCounter(prometheus.CounterOpts{
			Name: "email_clicks_total",
			Help: "Total number of tracked link clicks recorded",
		}),
		RepliesMatched: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "replies_matched_total",
				Help: "Total number of inbound replies matched to campaigns",
			},
			[]string{"method"}, // message_id, heuristic, manual
		),
	}
}

// Middleware records request count and latency per route
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}

			labels := []string{c.Request().Method, c.Path(), strconv.Itoa(status)}
			m.HTTPRequestsTotal.WithLabelValues(labels...).Inc()
			m.HTTPRequestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())

			return err
		}
	}
}
