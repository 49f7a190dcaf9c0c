package metrics

import (
	"taxmate-hq/throttle/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Collector manages metric registration and provides the recording
// interface used by the throttle and the HTTP server.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	throttleMetrics *ThrottleMetrics
	requestMetrics  *RequestMetrics
}

// NewCollector creates a new metrics collector with the specified
// configuration and Prometheus registry. If registry is nil, a new
// registry with Go runtime and process collectors is created.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if cfg == nil {
		cfg = &config.MetricsConfig{}
	}
	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	return &Collector{
		config:          cfg,
		registry:        registry,
		throttleMetrics: NewThrottleMetrics(cfg, registry),
		requestMetrics:  NewRequestMetrics(cfg, registry),
	}
}

// Registry returns the registry backing this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// enabled reports whether recording is on.
func (c *Collector) enabled() bool {
	return c.config.IsEnabled()
}
