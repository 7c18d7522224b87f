package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the storefront collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	requests       *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	cartMutations  *prometheus.CounterVec
	remoteFailures *prometheus.CounterVec
	checkouts      *prometheus.CounterVec
	payments       *prometheus.CounterVec
	syncQueueDrops prometheus.Counter
	activeSessions prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storefront_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		requestLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "storefront_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		cartMutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storefront_cart_mutations_total",
				Help: "Cart mutations by operation",
			},
			[]string{"op"},
		),
		remoteFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storefront_remote_failures_total",
				Help: "Best-effort remote calls that failed",
			},
			[]string{"call"},
		),
		checkouts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storefront_checkouts_total",
				Help: "Checkout attempts by outcome",
			},
			[]string{"outcome"},
		),
		payments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storefront_payments_total",
				Help: "Simulated payments by method and status",
			},
			[]string{"method", "status"},
		),
		syncQueueDrops: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "storefront_cart_sync_superseded_total",
				Help: "Cart snapshots replaced by a newer one before being pushed",
			},
		),
		activeSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "storefront_active_sessions",
				Help: "Sessions created minus sessions ended since start",
			},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.requests,
			m.requestLatency,
			m.cartMutations,
			m.remoteFailures,
			m.checkouts,
			m.payments,
			m.syncQueueDrops,
			m.activeSessions,
		)
	}
	return m
}

func (m *Metrics) CartMutation(op string) {
	if m == nil {
		return
	}
	m.cartMutations.WithLabelValues(op).Inc()
}

func (m *Metrics) RemoteFailure(call string) {
	if m == nil {
		return
	}
	m.remoteFailures.WithLabelValues(call).Inc()
}

func (m *Metrics) Checkout(outcome string) {
	if m == nil {
		return
	}
	m.checkouts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Payment(method, status string) {
	if m == nil {
		return
	}
	m.payments.WithLabelValues(method, status).Inc()
}

func (m *Metrics) SyncSuperseded() {
	if m == nil {
		return
	}
	m.syncQueueDrops.Inc()
}

func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.activeSessions.Inc()
}

func (m *Metrics) SessionEnded() {
	if m == nil {
		return
	}
	m.activeSessions.Dec()
}

// Middleware records request count and latency per route template.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil {
				return next(c)
			}
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else {
					status = 500
				}
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			m.requests.WithLabelValues(c.Request().Method, route, strconv.Itoa(status)).Inc()
			m.requestLatency.WithLabelValues(c.Request().Method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}
