package atom

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsConfig configures registry metrics.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "atom").
	Namespace string

	// Subsystem is the metrics subsystem (default: "registry").
	Subsystem string

	// ConstLabels are added to every metric.
	ConstLabels prometheus.Labels

	// Registry is where metrics are registered.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures registry metrics.
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

// WithRegisterer sets the Prometheus registerer.
func WithRegisterer(reg prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = reg
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "atom",
		Subsystem: "registry",
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics are the Prometheus collectors a Registry records into. A nil
// *Metrics records nothing. One Metrics can be shared by several
// registries.
//
// Metrics collected:
//   - atom_registry_nodes: gauge of live nodes by kind
//   - atom_registry_subscriptions: gauge of live subscriptions
//   - atom_registry_mounts: gauge of live mounts
//   - atom_registry_notifications_total: subscriber callbacks delivered
//   - atom_registry_recomputations_total: derived and async evaluations
//   - atom_registry_async_runs_total: finished async evaluations by outcome
//   - atom_registry_suspensions_total: reads that suspended on a pending result
type Metrics struct {
	nodes          *prometheus.GaugeVec
	subscriptions  prometheus.Gauge
	mounts         prometheus.Gauge
	notifications  prometheus.Counter
	recomputations prometheus.Counter
	asyncRuns      *prometheus.CounterVec
	suspensions    prometheus.Counter
}

// NewMetrics creates and registers registry metrics.
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		nodes: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "nodes",
			Help:        "Number of live atom nodes",
			ConstLabels: config.ConstLabels,
		}, []string{"kind"}),

		subscriptions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "subscriptions",
			Help:        "Number of live atom subscriptions",
			ConstLabels: config.ConstLabels,
		}),

		mounts: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "mounts",
			Help:        "Number of live atom mounts",
			ConstLabels: config.ConstLabels,
		}),

		notifications: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "notifications_total",
			Help:        "Total number of subscriber notifications delivered",
			ConstLabels: config.ConstLabels,
		}),

		recomputations: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "recomputations_total",
			Help:        "Total number of derived and async atom evaluations",
			ConstLabels: config.ConstLabels,
		}),

		asyncRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "async_runs_total",
			Help:        "Total number of finished async evaluations by outcome",
			ConstLabels: config.ConstLabels,
		}, []string{"outcome"}),

		suspensions: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "suspensions_total",
			Help:        "Total number of reads suspended on a pending result",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// RecordSuspension counts a read that suspended.
func (m *Metrics) RecordSuspension() {
	if m != nil {
		m.suspensions.Inc()
	}
}

func (m *Metrics) nodeAdded(k kind) {
	if m != nil {
		m.nodes.WithLabelValues(k.String()).Inc()
	}
}

func (m *Metrics) nodeRemoved(k kind) {
	if m != nil {
		m.nodes.WithLabelValues(k.String()).Dec()
	}
}

func (m *Metrics) subscribed() {
	if m != nil {
		m.subscriptions.Inc()
	}
}

func (m *Metrics) unsubscribed() {
	if m != nil {
		m.subscriptions.Dec()
	}
}

func (m *Metrics) mounted() {
	if m != nil {
		m.mounts.Inc()
	}
}

func (m *Metrics) unmounted(n int) {
	if m != nil {
		m.mounts.Sub(float64(n))
	}
}

func (m *Metrics) notified() {
	if m != nil {
		m.notifications.Inc()
	}
}

func (m *Metrics) recomputed() {
	if m != nil {
		m.recomputations.Inc()
	}
}

func (m *Metrics) asyncFinished(outcome string) {
	if m != nil {
		m.asyncRuns.WithLabelValues(outcome).Inc()
	}
}
