// Package metrics exposes Prometheus collectors for the cache and the upstream API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/agentuity/fetch-mcp/cache"
	"github.com/agentuity/fetch-mcp/jina"
	"github.com/agentuity/fetch-mcp/resilience"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const Namespace = "fetch_mcp"

// upstream latency buckets in seconds
var defaultBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// Metrics owns a registry and the collectors registered on it
type Metrics struct {
	registry *prometheus.Registry

	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec
	cacheErrors *prometheus.CounterVec

	upstreamRequests *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec

	breakerState *prometheus.GaugeVec
	breakerTrips *prometheus.CounterVec

	toolCalls *prometheus.CounterVec
}

var (
	_ cache.Hook    = (*Metrics)(nil)
	_ jina.Observer = (*Metrics)(nil)
)

func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = Namespace
	}
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: registry,

		cacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hits_total",
				Help:      "Memoized calls answered from the cache",
			},
			[]string{"name"},
		),
		cacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_misses_total",
				Help:      "Memoized calls that invoked the producer",
			},
			[]string{"name"},
		),
		cacheErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_errors_total",
				Help:      "Cache backend operations that failed",
			},
			[]string{"name", "op"},
		),

		upstreamRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_requests_total",
				Help:      "HTTP attempts against the content API",
			},
			[]string{"endpoint", "code"},
		),
		upstreamDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upstream_request_duration_seconds",
				Help:      "Duration of HTTP attempts against the content API",
				Buckets:   defaultBuckets,
			},
			[]string{"endpoint"},
		),

		breakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"upstream"},
		),
		breakerTrips: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_trips_total",
				Help:      "Times the circuit breaker opened",
			},
			[]string{"upstream"},
		),

		toolCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tool_calls_total",
				Help:      "MCP tool calls by outcome",
			},
			[]string{"tool", "status"},
		),
	}

	registry.MustRegister(
		m.cacheHits, m.cacheMisses, m.cacheErrors,
		m.upstreamRequests, m.upstreamDuration,
		m.breakerState, m.breakerTrips,
		m.toolCalls,
	)
	return m
}

func (m *Metrics) Hit(name string) {
	m.cacheHits.WithLabelValues(name).Inc()
}

func (m *Metrics) Miss(name string) {
	m.cacheMisses.WithLabelValues(name).Inc()
}

func (m *Metrics) Error(name string, op string, _ error) {
	m.cacheErrors.WithLabelValues(name, op).Inc()
}

// ObserveRequest records one upstream attempt. Attempts without a response are
// counted under code "error".
func (m *Metrics) ObserveRequest(endpoint string, status int, elapsed time.Duration, _ error) {
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	m.upstreamRequests.WithLabelValues(endpoint, code).Inc()
	m.upstreamDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// BreakerStateChange returns a callback suitable for CircuitBreakerConfig.OnStateChange
func (m *Metrics) BreakerStateChange(upstream string) func(from, to resilience.CircuitBreakerState) {
	m.breakerState.WithLabelValues(upstream).Set(float64(resilience.StateClosed))
	return func(_, to resilience.CircuitBreakerState) {
		m.breakerState.WithLabelValues(upstream).Set(float64(to))
		if to == resilience.StateOpen {
			m.breakerTrips.WithLabelValues(upstream).Inc()
		}
	}
}

// ToolCall counts a tool invocation; status is "ok" or "error"
func (m *Metrics) ToolCall(tool string, status string) {
	m.toolCalls.WithLabelValues(tool, status).Inc()
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
