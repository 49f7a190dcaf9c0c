package metrics

import (
	"time"

	"taxmate-hq/throttle/pkg/config"
	"taxmate-hq/throttle/pkg/throttle"

	"github.com/prometheus/client_golang/prometheus"
)

// ThrottleMetrics tracks admission decisions and registry maintenance.
type ThrottleMetrics struct {
	decisionsTotal *prometheus.CounterVec
	faultsTotal    *prometheus.CounterVec
	gcRunsTotal    prometheus.Counter
	gcRemoved      prometheus.Counter
	gcDuration     prometheus.Histogram
	registryUsers  prometheus.Gauge
}

// NewThrottleMetrics creates and registers throttle metrics with the provided registry.
func NewThrottleMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *ThrottleMetrics {
	tm := &ThrottleMetrics{
		decisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "throttle",
				Name:      "decisions_total",
				Help:      "Total number of admission decisions by category and outcome",
			},
			[]string{"category", "outcome"},
		),

		faultsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "throttle",
				Name:      "faults_total",
				Help:      "Total number of internal faults recovered by operation",
			},
			[]string{"operation"},
		),

		gcRunsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "throttle",
			Name:      "gc_runs_total",
			Help:      "Total number of garbage collection passes",
		}),

		gcRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "throttle",
			Name:      "gc_removed_users_total",
			Help:      "Total number of inactive users removed from the registry",
		}),

		gcDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: "throttle",
			Name:      "gc_duration_seconds",
			Help:      "Duration of garbage collection passes in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8), // 100µs to ~1.6s
		}),

		registryUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: "throttle",
			Name:      "registry_users",
			Help:      "Number of users currently tracked",
		}),
	}

	registry.MustRegister(
		tm.decisionsTotal,
		tm.faultsTotal,
		tm.gcRunsTotal,
		tm.gcRemoved,
		tm.gcDuration,
		tm.registryUsers,
	)

	return tm
}

// UnknownCategoryLabel is the category label of every unlimited decision.
// Categories without a policy come straight from clients, so they share
// one series.
const UnknownCategoryLabel = "unknown"

// ObserveDecision implements throttle.Observer.
func (c *Collector) ObserveDecision(category throttle.Category, outcome throttle.Outcome) {
	if !c.enabled() {
		return
	}
	label := string(category)
	if outcome == throttle.OutcomeUnlimited {
		label = UnknownCategoryLabel
	}
	c.throttleMetrics.decisionsTotal.WithLabelValues(label, string(outcome)).Inc()
}

// ObserveFault implements throttle.Observer.
func (c *Collector) ObserveFault(operation string) {
	if !c.enabled() {
		return
	}
	c.throttleMetrics.faultsTotal.WithLabelValues(operation).Inc()
}

// ObserveGarbageCollected implements throttle.Observer.
func (c *Collector) ObserveGarbageCollected(removed int, duration time.Duration) {
	if !c.enabled() {
		return
	}
	c.throttleMetrics.gcRunsTotal.Inc()
	c.throttleMetrics.gcRemoved.Add(float64(removed))
	c.throttleMetrics.gcDuration.Observe(duration.Seconds())
}

// ObserveRegistrySize implements throttle.Observer.
func (c *Collector) ObserveRegistrySize(users int) {
	if !c.enabled() {
		return
	}
	c.throttleMetrics.registryUsers.Set(float64(users))
}

var _ throttle.Observer = (*Collector)(nil)
