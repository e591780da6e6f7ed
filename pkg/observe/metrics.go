package observe

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/vango-dev/cells/pkg/cell"
)

// MetricsConfig configures the Prometheus instrumentation.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "cells").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for fetch duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus instrumentation.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the fetch duration histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "cells",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics records cell activity as Prometheus metrics. It implements
// cell.Instrumentation.
type Metrics struct {
	notifications    *prometheus.CounterVec
	listenerFailures *prometheus.CounterVec
	demandChanges    *prometheus.CounterVec
	activeCells      *prometheus.GaugeVec
	fetchesStarted   *prometheus.CounterVec
	fetchesSettled   *prometheus.CounterVec
	fetchesInFlight  prometheus.Gauge
	fetchWaiters     prometheus.Histogram
	fetchDuration    *prometheus.HistogramVec

	mu      sync.Mutex
	started map[uint64]time.Time
}

var _ cell.Instrumentation = (*Metrics)(nil)

// Prometheus creates metrics registered with the configured registry.
//
// Metrics collected:
//   - cells_notifications_total: Counter of notification rounds by kind
//   - cells_listener_failures_total: Counter of panicking listeners by kind
//   - cells_demand_transitions_total: Counter of demand transitions by kind and direction
//   - cells_active: Gauge of demanded cells by kind
//   - cells_fetches_started_total: Counter of fetch cycles opened by kind
//   - cells_fetches_settled_total: Counter of fetch cycles closed by kind and outcome
//   - cells_fetches_in_flight: Gauge of open fetch cycles
//   - cells_fetch_waiters: Histogram of readers sharing one fetch
//   - cells_fetch_duration_seconds: Histogram of fetch cycle duration by kind
//
// Each call registers a new set of collectors, so pass a fresh registry per
// instance.
func Prometheus(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "notifications_total",
			Help:        "Total number of listener notification rounds",
			ConstLabels: config.ConstLabels,
		}, []string{"kind"}),

		listenerFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "listener_failures_total",
			Help:        "Total number of listeners that panicked",
			ConstLabels: config.ConstLabels,
		}, []string{"kind"}),

		demandChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "demand_transitions_total",
			Help:        "Total number of first-listener and last-listener transitions",
			ConstLabels: config.ConstLabels,
		}, []string{"kind", "direction"}),

		activeCells: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "active",
			Help:        "Number of cells that currently have listeners",
			ConstLabels: config.ConstLabels,
		}, []string{"kind"}),

		fetchesStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "fetches_started_total",
			Help:        "Total number of remote fetch cycles opened",
			ConstLabels: config.ConstLabels,
		}, []string{"kind"}),

		fetchesSettled: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "fetches_settled_total",
			Help:        "Total number of remote fetch cycles closed",
			ConstLabels: config.ConstLabels,
		}, []string{"kind", "outcome"}),

		fetchesInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "fetches_in_flight",
			Help:        "Number of open remote fetch cycles",
			ConstLabels: config.ConstLabels,
		}),

		fetchWaiters: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "fetch_waiters",
			Help:        "Number of reads sharing one fetch cycle",
			ConstLabels: config.ConstLabels,
			Buckets:     []float64{1, 2, 4, 8, 16, 32, 64},
		}),

		fetchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "fetch_duration_seconds",
			Help:        "Remote fetch cycle duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"kind"}),

		started: make(map[uint64]time.Time),
	}
}

// Notified implements cell.Instrumentation.
func (m *Metrics) Notified(info cell.Info, _ int) {
	m.notifications.WithLabelValues(string(info.Kind)).Inc()
}

// ListenerFailed implements cell.Instrumentation.
func (m *Metrics) ListenerFailed(info cell.Info, _ error) {
	m.listenerFailures.WithLabelValues(string(info.Kind)).Inc()
}

// DemandChanged implements cell.Instrumentation.
func (m *Metrics) DemandChanged(info cell.Info, active bool) {
	kind := string(info.Kind)
	if active {
		m.demandChanges.WithLabelValues(kind, "up").Inc()
		m.activeCells.WithLabelValues(kind).Inc()
		return
	}
	m.demandChanges.WithLabelValues(kind, "down").Inc()
	m.activeCells.WithLabelValues(kind).Dec()
}

// FetchStarted implements cell.Instrumentation.
func (m *Metrics) FetchStarted(info cell.Info) {
	m.fetchesStarted.WithLabelValues(string(info.Kind)).Inc()
	m.fetchesInFlight.Inc()

	m.mu.Lock()
	m.started[info.ID] = time.Now()
	m.mu.Unlock()
}

// FetchSettled implements cell.Instrumentation.
func (m *Metrics) FetchSettled(info cell.Info, waiters int, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.fetchesSettled.WithLabelValues(string(info.Kind), outcome).Inc()
	m.fetchesInFlight.Dec()
	m.fetchWaiters.Observe(float64(waiters))

	m.mu.Lock()
	start, ok := m.started[info.ID]
	delete(m.started, info.ID)
	m.mu.Unlock()
	if ok {
		m.fetchDuration.WithLabelValues(string(info.Kind)).Observe(time.Since(start).Seconds())
	}
}
