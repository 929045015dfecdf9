package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the engine collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	reloads       *prometheus.CounterVec
	buildDuration prometheus.Histogram
	entries       prometheus.Gauge
	roots         prometheus.Gauge
	lastReload    prometheus.Gauge
	requests      *prometheus.CounterVec
	reqDuration   *prometheus.HistogramVec
	toolCalls     *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them, together with the Go
// runtime and process collectors, on a new registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		reloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orgtree_reloads_total",
				Help: "Total number of chart loads, by result",
			},
			[]string{"result"},
		),
		buildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "orgtree_build_duration_seconds",
			Help:    "Time spent loading entries and building the hierarchy",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orgtree_entries",
			Help: "Number of positions in the current chart",
		}),
		roots: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orgtree_roots",
			Help: "Number of top-level positions in the current chart",
		}),
		lastReload: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orgtree_last_reload_timestamp_seconds",
			Help: "Unix time of the last successful load",
		}),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orgtree_http_requests_total",
				Help: "Total number of HTTP requests, by route, method and status code",
			},
			[]string{"route", "method", "code"},
		),
		reqDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "orgtree_http_request_duration_seconds",
				Help: "Duration of HTTP requests",
			},
			[]string{"route"},
		),
		toolCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orgtree_mcp_tool_calls_total",
				Help: "Total number of MCP tool invocations",
			},
			[]string{"tool", "is_error"},
		),
	}

	m.registry.MustRegister(
		m.reloads, m.buildDuration, m.entries, m.roots, m.lastReload,
		m.requests, m.reqDuration, m.toolCalls,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry, e.g. to add application collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveReload records one load attempt. entries and roots are only used on success.
func (m *Metrics) ObserveReload(d time.Duration, entries, roots int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.reloads.WithLabelValues("error").Inc()
		return
	}
	m.reloads.WithLabelValues("ok").Inc()
	m.buildDuration.Observe(d.Seconds())
	m.entries.Set(float64(entries))
	m.roots.Set(float64(roots))
	m.lastReload.SetToCurrentTime()
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(route, method string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.reqDuration.WithLabelValues(route).Observe(d.Seconds())
}

// ObserveToolCall records one MCP tool invocation.
func (m *Metrics) ObserveToolCall(tool string, isError bool) {
	if m == nil {
		return
	}
	label := "false"
	if isError {
		label = "true"
	}
	m.toolCalls.WithLabelValues(tool, label).Inc()
}
