// Package metrics exposes the Prometheus collectors shared by the front-end
// and the worker. A nil *Collector is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "playbox"

// CircuitState mirrors the breaker states as gauge values.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

type Collector struct {
	registry *prometheus.Registry

	backendRequests *prometheus.CounterVec
	backendLatency  *prometheus.HistogramVec
	circuitState    *prometheus.GaugeVec
	circuitOpens    *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec

	posOperations  *prometheus.CounterVec
	journalEvents  *prometheus.CounterVec
	activeSessions prometheus.Gauge
	staleResponses *prometheus.CounterVec
}

// New builds a collector on a private registry so tests can create many.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		backendRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backend_requests_total",
				Help:      "PlayBox backend calls by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		backendLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "backend_request_duration_seconds",
				Help:      "PlayBox backend call latency",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
			},
			[]string{"operation"},
		),
		circuitState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_state",
				Help:      "Circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
			[]string{"breaker"},
		),
		circuitOpens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "circuit_opens_total",
				Help:      "Number of times a circuit breaker opened",
			},
			[]string{"breaker"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests served by route and status code",
			},
			[]string{"route", "method", "code"},
		),
		httpLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency by route",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		posOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pos_operations_total",
				Help:      "POS operations by kind and result",
			},
			[]string{"kind", "result"},
		),
		journalEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "journal_events_total",
				Help:      "Operator journal events (recorded, published, synced, failed)",
			},
			[]string{"event"},
		),
		activeSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_sessions",
				Help:      "Operator sessions currently held in memory",
			},
		),
		staleResponses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stale_responses_total",
				Help:      "Backend responses discarded because a newer request superseded them",
			},
			[]string{"resource"},
		),
	}
	c.registry.MustRegister(
		c.backendRequests, c.backendLatency, c.circuitState, c.circuitOpens,
		c.httpRequests, c.httpLatency,
		c.posOperations, c.journalEvents, c.activeSessions, c.staleResponses,
	)
	return c
}

// Handler serves the collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

func (c *Collector) RecordBackendCall(operation, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.backendRequests.WithLabelValues(operation, outcome).Inc()
	c.backendLatency.WithLabelValues(operation).Observe(d.Seconds())
}

func (c *Collector) RecordCircuitState(breaker string, state CircuitState) {
	if c == nil {
		return
	}
	c.circuitState.WithLabelValues(breaker).Set(float64(state))
	if state == CircuitOpen {
		c.circuitOpens.WithLabelValues(breaker).Inc()
	}
}

func (c *Collector) RecordHTTP(route, method string, code int, d time.Duration) {
	if c == nil {
		return
	}
	c.httpRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	c.httpLatency.WithLabelValues(route).Observe(d.Seconds())
}

func (c *Collector) RecordPOS(kind string, ok bool) {
	if c == nil {
		return
	}
	result := "success"
	if !ok {
		result = "error"
	}
	c.posOperations.WithLabelValues(kind, result).Inc()
}

func (c *Collector) RecordJournal(event string) {
	if c == nil {
		return
	}
	c.journalEvents.WithLabelValues(event).Inc()
}

func (c *Collector) SetActiveSessions(n int) {
	if c == nil {
		return
	}
	c.activeSessions.Set(float64(n))
}

func (c *Collector) RecordStale(resource string) {
	if c == nil {
		return
	}
	c.staleResponses.WithLabelValues(resource).Inc()
}

// ObserveRateLimit exports the limiter's rejection count and tracked
// clients, read at scrape time. Call it once per collector.
func (c *Collector) ObserveRateLimit(rejected func() int64, clients func() int) {
	if c == nil {
		return
	}
	c.registry.MustRegister(
		prometheus.NewCounterFunc(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ratelimit_rejected_total",
				Help:      "Requests rejected by the per-client rate limiter",
			},
			func() float64 { return float64(rejected()) },
		),
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "ratelimit_clients",
				Help:      "Clients currently tracked by the rate limiter",
			},
			func() float64 { return float64(clients()) },
		),
	)
}
