package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateThrottle(&cfg.Throttle)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: "listen address is required",
		})
	} else if _, port, err := net.SplitHostPort(cfg.ListenAddress); err != nil || port == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: fmt.Sprintf("invalid listen address %q: must be host:port", cfg.ListenAddress),
		})
	}

	if cfg.ShutdownTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.shutdown_timeout",
			Message: "shutdown timeout must not be negative",
		})
	}

	if cfg.AdminRateLimit.IsEnabled() {
		if cfg.AdminRateLimit.RequestsPerSecond <= 0 {
			errs = append(errs, FieldError{
				Field:   "server.admin_rate_limit.requests_per_second",
				Message: "requests per second must be positive",
			})
		}
		if cfg.AdminRateLimit.Burst <= 0 {
			errs = append(errs, FieldError{
				Field:   "server.admin_rate_limit.burst",
				Message: "burst must be positive",
			})
		}
	}

	return errs
}

func validateThrottle(cfg *ThrottleConfig) []FieldError {
	var errs []FieldError

	if len(cfg.Categories) == 0 {
		errs = append(errs, FieldError{
			Field:   "throttle.categories",
			Message: "at least one category is required",
		})
	}

	for name, cat := range cfg.Categories {
		field := fmt.Sprintf("throttle.categories.%s", name)
		if strings.TrimSpace(name) == "" {
			errs = append(errs, FieldError{Field: field, Message: "category name must not be empty"})
		}
		if cat.MaxRequests <= 0 {
			errs = append(errs, FieldError{
				Field:   field + ".max_requests",
				Message: fmt.Sprintf("max requests must be positive, got %d", cat.MaxRequests),
			})
		}
		if cat.Window <= 0 {
			errs = append(errs, FieldError{
				Field:   field + ".window",
				Message: fmt.Sprintf("window must be positive, got %s", cat.Window),
			})
		}
	}

	if cfg.ActiveHorizon <= 0 {
		errs = append(errs, FieldError{
			Field:   "throttle.active_horizon",
			Message: "active horizon must be positive",
		})
	}

	if cfg.GC.IsEnabled() {
		if _, err := cron.ParseStandard(cfg.GC.Schedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "throttle.gc.schedule",
				Message: fmt.Sprintf("invalid cron schedule %q: %v", cfg.GC.Schedule, err),
			})
		}
	}
	if cfg.GC.MaxAge <= 0 {
		errs = append(errs, FieldError{
			Field:   "throttle.gc.max_age",
			Message: "max age must be positive",
		})
	} else if longest := cfg.LongestWindow(); cfg.GC.MaxAge < longest {
		errs = append(errs, FieldError{
			Field:   "throttle.gc.max_age",
			Message: fmt.Sprintf("max age %s is shorter than the longest category window %s", cfg.GC.MaxAge, longest),
		})
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if cfg.Logging.Level == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: "logging level is required",
		})
	} else if !validLevels[cfg.Logging.Level] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if cfg.Logging.Format == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: "logging format is required",
		})
	} else if !validFormats[cfg.Logging.Format] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json' or 'text'", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.IsEnabled() && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: "metrics path must start with '/'",
		})
	}

	for field, path := range map[string]string{
		"telemetry.health.liveness_path":  cfg.Health.LivenessPath,
		"telemetry.health.readiness_path": cfg.Health.ReadinessPath,
		"telemetry.health.version_path":   cfg.Health.VersionPath,
	} {
		if !strings.HasPrefix(path, "/") {
			errs = append(errs, FieldError{Field: field, Message: "path must start with '/'"})
		}
	}

	if cfg.Tracing.Enabled {
		if cfg.Tracing.Endpoint == "" {
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.endpoint",
				Message: "endpoint is required when tracing is enabled",
			})
		}
		validSamplers := map[string]bool{"always": true, "never": true, "ratio": true}
		if !validSamplers[cfg.Tracing.Sampler] {
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.sampler",
				Message: fmt.Sprintf("invalid sampler %q: must be 'always', 'never', or 'ratio'", cfg.Tracing.Sampler),
			})
		}
		if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.sample_ratio",
				Message: fmt.Sprintf("sample ratio must be between 0.0 and 1.0, got %g", cfg.Tracing.SampleRatio),
			})
		}
	}

	return errs
}
