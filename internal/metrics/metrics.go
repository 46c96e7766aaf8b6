package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	Registry        *prometheus.Registry
	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	FeedFetches     *prometheus.CounterVec
	FeedDuration    prometheus.Histogram
}

// New builds the collectors on a private registry so several apps (tests)
// can coexist in one process.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventbuddy_http_requests_total",
				Help: "Total number of HTTP requests by route and status code",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "eventbuddy_http_request_duration_seconds",
				Help:    "HTTP request latency by route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		FeedFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventbuddy_open_data_fetches_total",
				Help: "Open-data feed fetches by outcome",
			},
			[]string{"outcome"},
		),
		FeedDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "eventbuddy_open_data_fetch_duration_seconds",
				Help:    "Open-data feed fetch latency",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
		),
	}

	m.Registry.MustRegister(
		m.Requests,
		m.RequestDuration,
		m.FeedFetches,
		m.FeedDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// RecordFeedFetch satisfies services.FetchRecorder.
func (m *Metrics) RecordFeedFetch(outcome string, elapsed time.Duration) {
	m.FeedFetches.WithLabelValues(outcome).Inc()
	m.FeedDuration.Observe(elapsed.Seconds())
}

// Middleware records one sample per request, labelled by the matched route
// pattern rather than the raw path.
func (m *Metrics) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			}
		}
		route := c.Route().Path
		m.Requests.WithLabelValues(c.Method(), route, strconv.Itoa(status)).Inc()
		m.RequestDuration.WithLabelValues(c.Method(), route).Observe(time.Since(start).Seconds())
		return err
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
}
