package config

import (
	"time"

	"taxmate-hq/throttle/pkg/throttle"
)

// Config is the root configuration structure for the throttle service.
// It contains the HTTP server settings, the quota policy table, garbage
// collection scheduling and telemetry settings.
type Config struct {
	// Server contains HTTP server configuration including listen address,
	// timeouts, and admin endpoint protection.
	Server ServerConfig `yaml:"server"`

	// Throttle contains the per-category quota policies, garbage collection
	// settings and hot reload options.
	Throttle ThrottleConfig `yaml:"throttle"`

	// Telemetry contains configuration for observability including logging,
	// metrics, and health checks.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port for the server to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:8090", "0.0.0.0:8090").
	// Default: "127.0.0.1:8090"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body.
	// Default: 10s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response.
	// Default: 10s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	// Default: 15s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes controls the maximum number of bytes the server will
	// read parsing the request header.
	// Default: 65536 (64KB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// AdminRateLimit protects the /v1 API from a single noisy client.
	AdminRateLimit AdminRateLimitConfig `yaml:"admin_rate_limit"`
}

// AdminRateLimitConfig configures the per-client token bucket in front of
// the /v1 API.
type AdminRateLimitConfig struct {
	// Enabled controls whether the limiter is installed.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// RequestsPerSecond is the sustained rate allowed per remote address.
	// Default: 50
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	// Burst is the bucket size per remote address.
	// Default: 100
	Burst int `yaml:"burst"`
}

// IsEnabled reports whether the admin limiter is on.
func (c AdminRateLimitConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// ThrottleConfig contains the quota policy table and its maintenance.
type ThrottleConfig struct {
	// Categories maps category names to their quota.
	// Default: text_query 10 per 1h, document_analysis 3 per 24h
	Categories map[string]CategoryConfig `yaml:"categories"`

	// ActiveHorizon is the look-back window used for global statistics.
	// Default: 24h
	ActiveHorizon time.Duration `yaml:"active_horizon"`

	// Watch enables hot reload of Categories when the config file changes.
	// Default: false
	Watch bool `yaml:"watch"`

	// WatchDebounce is the quiet period before a changed file is reloaded.
	// Default: 200ms
	WatchDebounce time.Duration `yaml:"watch_debounce"`

	// GC contains inactive user reclamation settings.
	GC GCConfig `yaml:"gc"`
}

// CategoryConfig is the quota of one category.
type CategoryConfig struct {
	// MaxRequests is the number of admissions allowed per window.
	MaxRequests int `yaml:"max_requests"`

	// Window is the sliding window length (e.g., "1h", "24h").
	Window time.Duration `yaml:"window"`

	// Description is shown to users and operators.
	// Default: generated from MaxRequests and Window
	Description string `yaml:"description"`
}

// GCConfig contains garbage collection settings.
type GCConfig struct {
	// Enabled controls whether the sweeper runs.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// Schedule is a standard 5-field cron expression.
	// Default: "*/15 * * * *"
	Schedule string `yaml:"schedule"`

	// MaxAge is the age beyond which admissions are forgotten. It must be
	// at least as long as the longest category window.
	// Default: 24h
	MaxAge time.Duration `yaml:"max_age"`
}

// IsEnabled reports whether the sweeper should run.
func (c GCConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Health contains health check configuration.
	Health HealthConfig `yaml:"health"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// PseudonymizeUsers replaces user IDs in log records with a stable
	// hash so chat account IDs do not end up in log storage.
	// Default: false
	PseudonymizeUsers bool `yaml:"pseudonymize_users"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "taxmate"
	Namespace string `yaml:"namespace"`
}

// IsEnabled reports whether metrics are collected.
func (c MetricsConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// HealthConfig contains health check endpoint configuration.
type HealthConfig struct {
	// LivenessPath is the path for the liveness probe endpoint.
	// Default: "/health"
	LivenessPath string `yaml:"liveness_path"`

	// ReadinessPath is the path for the readiness probe endpoint.
	// Default: "/ready"
	ReadinessPath string `yaml:"readiness_path"`

	// VersionPath is the path for the version information endpoint.
	// Default: "/version"
	VersionPath string `yaml:"version_path"`

	// CheckTimeout is the timeout for individual component health checks.
	// Default: 2s
	CheckTimeout time.Duration `yaml:"check_timeout"`
}

// TracingConfig contains OpenTelemetry tracing configuration.
type TracingConfig struct {
	// Enabled controls whether spans are exported.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Endpoint is the OTLP gRPC collector address.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// Insecure disables TLS towards the collector.
	// Default: false
	Insecure bool `yaml:"insecure"`

	// Sampler is the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces kept by the "ratio" sampler.
	// Default: 0.1
	SampleRatio float64 `yaml:"sample_ratio"`

	// ServiceName is reported as the service.name resource attribute.
	// Default: "taxmate-throttle"
	ServiceName string `yaml:"service_name"`

	// Timeout bounds each export call.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

// Policies converts the configured categories into a throttle policy table.
func (c ThrottleConfig) Policies() map[throttle.Category]throttle.Policy {
	out := make(map[throttle.Category]throttle.Policy, len(c.Categories))
	for name, cat := range c.Categories {
		out[throttle.Category(name)] = throttle.Policy{
			MaxRequests: cat.MaxRequests,
			Window:      cat.Window,
			Description: cat.Description,
		}
	}
	return out
}

// LongestWindow returns the largest configured category window.
func (c ThrottleConfig) LongestWindow() time.Duration {
	var longest time.Duration
	for _, cat := range c.Categories {
		if cat.Window > longest {
			longest = cat.Window
		}
	}
	return longest
}
