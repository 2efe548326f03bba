// Package metrics exposes Prometheus metrics for the inventory core.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the core's collectors and the registry they live in.
// It satisfies the Telemetry interfaces of accesspoint and shelfcontroller.
type Metrics struct {
	registry *prometheus.Registry

	ScansTotal        *prometheus.CounterVec
	LightCommands     *prometheus.CounterVec
	MotionEvents      *prometheus.CounterVec
	HTTPRequestsTotal *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
}

// New creates and registers the core's metrics under namespace, together
// with the Go runtime and process collectors.
func New(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ScansTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "identify",
				Name:      "scans_total",
				Help:      "Total number of item identification attempts",
			},
			[]string{"scan_type", "result"}, // result: found, not_found
		),
		LightCommands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "lighting",
				Name:      "commands_total",
				Help:      "Total number of shelf light commands",
			},
			[]string{"action", "trigger", "status"}, // status: success, error
		),
		MotionEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "shelf",
				Name:      "motion_events_total",
				Help:      "Total number of shelf motion reports by outcome",
			},
			[]string{"outcome"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ScansTotal,
		m.LightCommands,
		m.MotionEvents,
		m.HTTPRequestsTotal,
		m.HTTPDuration,
	)
	return m
}

// Handler returns an HTTP handler exposing the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RegisterGauge exposes a value sampled at scrape time, such as connected
// WebSocket clients.
func (m *Metrics) RegisterGauge(namespace, subsystem, name, help string, fn func() float64) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		},
		fn,
	))
}

// RecordScan counts one identification attempt.
func (m *Metrics) RecordScan(_, _ string, scanType string, found bool) {
	result := "not_found"
	if found {
		result = "found"
	}
	m.ScansTotal.WithLabelValues(scanType, result).Inc()
}

// RecordLight counts one light command outcome.
func (m *Metrics) RecordLight(_ string, _ int, turnOn bool, trigger string, succeeded bool) {
	action := "off"
	if turnOn {
		action = "on"
	}
	m.LightCommands.WithLabelValues(action, trigger, status(succeeded)).Inc()
}

// RecordMotion counts one motion report.
func (m *Metrics) RecordMotion(_ string, _ int, outcome string) {
	m.MotionEvents.WithLabelValues(outcome).Inc()
}

// ObserveHTTP records one served request. route is the matched pattern,
// not the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveHTTP(method, route string, statusCode int, elapsed time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func status(ok bool) string {
	if ok {
		return "success"
	}
	return "error"
}
