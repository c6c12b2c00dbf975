package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for the loom pipeline. A
// disabled configuration yields a no-op instance whose record methods
// are safe to call.
type Metrics struct {
	config MetricsConfig

	stepsExecuted *prometheus.CounterVec
	stepDuration  *prometheus.HistogramVec

	portCalls    *prometheus.CounterVec
	portDuration *prometheus.HistogramVec
	retries      *prometheus.CounterVec

	circuitTrips  *prometheus.CounterVec
	circuitShorts *prometheus.CounterVec

	leasesAcquired  *prometheus.CounterVec
	acquireTimeouts *prometheus.CounterVec

	idempotencyHits prometheus.Counter

	registry *prometheus.Registry
}

// NewMetrics creates a metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		stepsExecuted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "steps_executed_total",
				Help:      "Total number of step executions",
			},
			[]string{"step", "status"},
		),
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "step_duration_seconds",
				Help:      "Duration of step executions in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"step"},
		),
		portCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "port_calls_total",
				Help:      "Total number of woven port calls",
			},
			[]string{"port", "op", "status"},
		),
		portDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "port_call_duration_seconds",
				Help:      "Duration of woven port calls in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"port", "op"},
		),
		retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retries_total",
				Help:      "Total number of retry attempts",
			},
			[]string{"port"},
		),
		circuitTrips: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "circuit_trips_total",
				Help:      "Total number of circuit breaker trips",
			},
			[]string{"circuit"},
		),
		circuitShorts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "circuit_short_circuits_total",
				Help:      "Total number of calls rejected by an open circuit",
			},
			[]string{"circuit"},
		),
		leasesAcquired: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "leases_acquired_total",
				Help:      "Total number of lease acquisitions",
			},
			[]string{"kind"},
		),
		acquireTimeouts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lease_acquire_timeouts_total",
				Help:      "Total number of lease acquisitions that exceeded their acquire budget",
			},
			[]string{"kind"},
		),
		idempotencyHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "idempotency_hits_total",
				Help:      "Total number of idempotency cache hits",
			},
		),
	}

	registry.MustRegister(
		m.stepsExecuted, m.stepDuration,
		m.portCalls, m.portDuration, m.retries,
		m.circuitTrips, m.circuitShorts,
		m.leasesAcquired, m.acquireTimeouts,
		m.idempotencyHits,
	)

	return m, nil
}

// RecordStep records one step execution outcome.
func (m *Metrics) RecordStep(step, status string, d time.Duration) {
	if m.stepsExecuted == nil {
		return
	}
	m.stepsExecuted.WithLabelValues(step, status).Inc()
	m.stepDuration.WithLabelValues(step).Observe(d.Seconds())
}

// RecordPortCall records one woven port call.
func (m *Metrics) RecordPortCall(port, op, status string, d time.Duration) {
	if m.portCalls == nil {
		return
	}
	m.portCalls.WithLabelValues(port, op, status).Inc()
	m.portDuration.WithLabelValues(port, op).Observe(d.Seconds())
}

// RecordRetry records one retry attempt.
func (m *Metrics) RecordRetry(port string) {
	if m.retries == nil {
		return
	}
	m.retries.WithLabelValues(port).Inc()
}

// RecordCircuitTrip records a circuit breaker trip.
func (m *Metrics) RecordCircuitTrip(circuit string) {
	if m.circuitTrips == nil {
		return
	}
	m.circuitTrips.WithLabelValues(circuit).Inc()
}

// RecordCircuitShort records a call rejected by an open circuit.
func (m *Metrics) RecordCircuitShort(circuit string) {
	if m.circuitShorts == nil {
		return
	}
	m.circuitShorts.WithLabelValues(circuit).Inc()
}

// RecordLeaseAcquired records a successful lease acquisition.
func (m *Metrics) RecordLeaseAcquired(kind string) {
	if m.leasesAcquired == nil {
		return
	}
	m.leasesAcquired.WithLabelValues(kind).Inc()
}

// RecordAcquireTimeout records a lease acquisition timeout.
func (m *Metrics) RecordAcquireTimeout(kind string) {
	if m.acquireTimeouts == nil {
		return
	}
	m.acquireTimeouts.WithLabelValues(kind).Inc()
}

// RecordIdempotencyHit records an idempotency cache hit.
func (m *Metrics) RecordIdempotencyHit() {
	if m.idempotencyHits == nil {
		return
	}
	m.idempotencyHits.Inc()
}

// StartMetricsServer starts the metrics HTTP endpoint when enabled.
func (m *Metrics) StartMetricsServer() error {
	if !m.config.Enabled {
		return nil
	}
	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	go func() {
		_ = http.ListenAndServe(m.config.ListenAddress, mux)
	}()
	return nil
}
