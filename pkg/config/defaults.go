package config

import (
	"fmt"
	"time"

	"taxmate-hq/throttle/pkg/throttle"
)

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8090"
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 10 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 15 * time.Second
	DefaultMaxHeaderBytes  = 65536 // 64KB

	// Admin rate limit defaults
	DefaultAdminRequestsPerSecond = 50.0
	DefaultAdminBurst             = 100

	// Throttle defaults
	DefaultActiveHorizon = throttle.DefaultActiveHorizon
	DefaultWatchDebounce = 200 * time.Millisecond

	// GC defaults
	DefaultGCSchedule = "*/15 * * * *"
	DefaultGCMaxAge   = throttle.DefaultMaxAge

	// Telemetry defaults
	DefaultLoggingLevel     = "info"
	DefaultLoggingFormat    = "json"
	DefaultMetricsPath      = "/metrics"
	DefaultMetricsNamespace = "taxmate"
	DefaultLivenessPath     = "/health"
	DefaultReadinessPath    = "/ready"
	DefaultVersionPath      = "/version"
	DefaultCheckTimeout     = 2 * time.Second

	// Tracing defaults
	DefaultTracingEndpoint    = "localhost:4317"
	DefaultTracingSampler     = "ratio"
	DefaultTracingSampleRatio = 0.1
	DefaultTracingServiceName = "taxmate-throttle"
	DefaultTracingTimeout     = 10 * time.Second
)

// NewDefaultConfig returns a configuration populated with default values.
func NewDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills every unset field of cfg with its default value.
// Fields that are already set are left untouched.
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if cfg.Server.AdminRateLimit.RequestsPerSecond == 0 {
		cfg.Server.AdminRateLimit.RequestsPerSecond = DefaultAdminRequestsPerSecond
	}
	if cfg.Server.AdminRateLimit.Burst == 0 {
		cfg.Server.AdminRateLimit.Burst = DefaultAdminBurst
	}

	// Throttle defaults
	if len(cfg.Throttle.Categories) == 0 {
		cfg.Throttle.Categories = make(map[string]CategoryConfig)
		for name, p := range throttle.DefaultPolicies() {
			cfg.Throttle.Categories[string(name)] = CategoryConfig{
				MaxRequests: p.MaxRequests,
				Window:      p.Window,
				Description: p.Description,
			}
		}
	}
	for name, cat := range cfg.Throttle.Categories {
		if cat.Description == "" && cat.MaxRequests > 0 && cat.Window > 0 {
			cat.Description = describe(cat.MaxRequests, cat.Window)
			cfg.Throttle.Categories[name] = cat
		}
	}
	if cfg.Throttle.ActiveHorizon == 0 {
		cfg.Throttle.ActiveHorizon = DefaultActiveHorizon
	}
	if cfg.Throttle.WatchDebounce == 0 {
		cfg.Throttle.WatchDebounce = DefaultWatchDebounce
	}

	// GC defaults
	if cfg.Throttle.GC.Schedule == "" {
		cfg.Throttle.GC.Schedule = DefaultGCSchedule
	}
	if cfg.Throttle.GC.MaxAge == 0 {
		cfg.Throttle.GC.MaxAge = DefaultGCMaxAge
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Health.LivenessPath == "" {
		cfg.Telemetry.Health.LivenessPath = DefaultLivenessPath
	}
	if cfg.Telemetry.Health.ReadinessPath == "" {
		cfg.Telemetry.Health.ReadinessPath = DefaultReadinessPath
	}
	if cfg.Telemetry.Health.VersionPath == "" {
		cfg.Telemetry.Health.VersionPath = DefaultVersionPath
	}
	if cfg.Telemetry.Health.CheckTimeout == 0 {
		cfg.Telemetry.Health.CheckTimeout = DefaultCheckTimeout
	}

	// Tracing defaults
	if cfg.Telemetry.Tracing.Endpoint == "" {
		cfg.Telemetry.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if cfg.Telemetry.Tracing.Sampler == "" {
		cfg.Telemetry.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Telemetry.Tracing.SampleRatio == 0 {
		cfg.Telemetry.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracingServiceName
	}
	if cfg.Telemetry.Tracing.Timeout == 0 {
		cfg.Telemetry.Tracing.Timeout = DefaultTracingTimeout
	}
}

// describe renders a quota such as "5 requests per 2h0m0s", using "hour"
// and "day" for the common windows.
func describe(maxRequests int, window time.Duration) string {
	switch window {
	case time.Hour:
		return fmt.Sprintf("%d requests per hour", maxRequests)
	case 24 * time.Hour:
		return fmt.Sprintf("%d requests per day", maxRequests)
	default:
		return fmt.Sprintf("%d requests per %s", maxRequests, window)
	}
}
