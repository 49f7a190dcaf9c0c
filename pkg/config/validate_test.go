package config

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	disabled := false

	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{
			name:      "bad listen address",
			mutate:    func(c *Config) { c.Server.ListenAddress = "localhost" },
			wantField: "server.listen_address",
		},
		{
			name: "negative window",
			mutate: func(c *Config) {
				c.Throttle.Categories["text_query"] = CategoryConfig{MaxRequests: 1, Window: -time.Minute}
			},
			wantField: "throttle.categories.text_query.window",
		},
		{
			name:      "no categories",
			mutate:    func(c *Config) { c.Throttle.Categories = map[string]CategoryConfig{} },
			wantField: "throttle.categories",
		},
		{
			name:      "invalid cron schedule",
			mutate:    func(c *Config) { c.Throttle.GC.Schedule = "every now and then" },
			wantField: "throttle.gc.schedule",
		},
		{
			name:      "max age shorter than window",
			mutate:    func(c *Config) { c.Throttle.GC.MaxAge = time.Hour },
			wantField: "throttle.gc.max_age",
		},
		{
			name:      "invalid log level",
			mutate:    func(c *Config) { c.Telemetry.Logging.Level = "verbose" },
			wantField: "telemetry.logging.level",
		},
		{
			name:      "invalid log format",
			mutate:    func(c *Config) { c.Telemetry.Logging.Format = "xml" },
			wantField: "telemetry.logging.format",
		},
		{
			name:      "relative metrics path",
			mutate:    func(c *Config) { c.Telemetry.Metrics.Path = "metrics" },
			wantField: "telemetry.metrics.path",
		},
		{
			name:      "zero admin burst",
			mutate:    func(c *Config) { c.Server.AdminRateLimit.Burst = -1 },
			wantField: "server.admin_rate_limit.burst",
		},
		{
			name: "tracing sampler ratio out of range",
			mutate: func(c *Config) {
				c.Telemetry.Tracing.Enabled = true
				c.Telemetry.Tracing.SampleRatio = 2
			},
			wantField: "telemetry.tracing.sample_ratio",
		},
		{
			name: "tracing unknown sampler",
			mutate: func(c *Config) {
				c.Telemetry.Tracing.Enabled = true
				c.Telemetry.Tracing.Sampler = "sometimes"
			},
			wantField: "telemetry.tracing.sampler",
		},
		{
			name:   "disabled tracing skips sampler check",
			mutate: func(c *Config) { c.Telemetry.Tracing.Sampler = "sometimes" },
		},
		{
			name: "disabled gc skips schedule check",
			mutate: func(c *Config) {
				c.Throttle.GC.Enabled = &disabled
				c.Throttle.GC.Schedule = "not a schedule"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("expected valid config, got %v", err)
				}
				return
			}

			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			found := false
			for _, fe := range verr.Errors {
				if fe.Field == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Errorf("expected error for field %q, got %v", tt.wantField, verr.Errors)
			}
		})
	}
}

func TestValidationError_Format(t *testing.T) {
	err := ValidationError{Errors: []FieldError{
		{Field: "a", Message: "first"},
		{Field: "b", Message: "second"},
	}}

	msg := err.Error()
	if !strings.Contains(msg, "2 errors") {
		t.Errorf("expected error count in message, got %q", msg)
	}
	if !strings.Contains(msg, "a: first") || !strings.Contains(msg, "b: second") {
		t.Errorf("expected both field errors in message, got %q", msg)
	}

	single := ValidationError{Errors: []FieldError{{Field: "a", Message: "first"}}}
	if single.Error() != "configuration validation failed: a: first" {
		t.Errorf("unexpected single error message %q", single.Error())
	}
}
