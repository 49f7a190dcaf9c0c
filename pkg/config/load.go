package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment variable override.
const EnvPrefix = "THROTTLE_"

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any errors.
// The configuration is not modified by environment variables; use LoadConfigWithEnvOverrides
// for that functionality.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML and applies defaults without validating.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(&cfg)
	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention THROTTLE_SECTION_FIELD (e.g., THROTTLE_SERVER_LISTEN_ADDRESS).
// Environment variables always take precedence over file-based configuration.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	// Server overrides
	if val := os.Getenv("THROTTLE_SERVER_LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}
	if val := os.Getenv("THROTTLE_SERVER_READ_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if val := os.Getenv("THROTTLE_SERVER_WRITE_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}
	if val := os.Getenv("THROTTLE_SERVER_SHUTDOWN_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.ShutdownTimeout = d
		}
	}

	// Quota shorthands kept for deployments that only tune the two
	// built-in categories.
	if val := os.Getenv("THROTTLE_MAX_QUERIES_PER_HOUR"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			setCategoryLimit(cfg, "text_query", i, time.Hour)
		}
	}
	if val := os.Getenv("THROTTLE_MAX_DOCUMENTS_PER_DAY"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			setCategoryLimit(cfg, "document_analysis", i, 24*time.Hour)
		}
	}

	for name := range cfg.Throttle.Categories {
		applyCategoryEnvOverrides(cfg, name)
	}

	if val := os.Getenv("THROTTLE_WATCH"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Throttle.Watch = b
		}
	}

	// GC overrides
	if val := os.Getenv("THROTTLE_GC_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Throttle.GC.Enabled = &b
		}
	}
	if val := os.Getenv("THROTTLE_GC_SCHEDULE"); val != "" {
		cfg.Throttle.GC.Schedule = val
	}
	if val := os.Getenv("THROTTLE_GC_MAX_AGE"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Throttle.GC.MaxAge = d
		}
	}

	// Telemetry overrides
	if val := os.Getenv("THROTTLE_TELEMETRY_LOGGING_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = strings.ToLower(val)
	}
	if val := os.Getenv("LOG_LEVEL"); val != "" && os.Getenv("THROTTLE_TELEMETRY_LOGGING_LEVEL") == "" {
		cfg.Telemetry.Logging.Level = strings.ToLower(val)
	}
	if val := os.Getenv("THROTTLE_TELEMETRY_LOGGING_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	if val := os.Getenv("THROTTLE_TELEMETRY_LOGGING_PSEUDONYMIZE_USERS"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Logging.PseudonymizeUsers = b
		}
	}
	if val := os.Getenv("THROTTLE_TELEMETRY_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Metrics.Enabled = &b
		}
	}
	if val := os.Getenv("THROTTLE_TELEMETRY_METRICS_PATH"); val != "" {
		cfg.Telemetry.Metrics.Path = val
	}
	if val := os.Getenv("THROTTLE_TELEMETRY_TRACING_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Tracing.Enabled = b
		}
	}
	if val := os.Getenv("THROTTLE_TELEMETRY_TRACING_ENDPOINT"); val != "" {
		cfg.Telemetry.Tracing.Endpoint = val
	}
	if val := os.Getenv("THROTTLE_TELEMETRY_TRACING_SAMPLE_RATIO"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Telemetry.Tracing.SampleRatio = f
		}
	}
}

// applyCategoryEnvOverrides applies overrides for a single category.
// Category variables follow the format THROTTLE_CATEGORIES_<NAME>_<FIELD>
// where NAME is the uppercase category name.
func applyCategoryEnvOverrides(cfg *Config, name string) {
	cat := cfg.Throttle.Categories[name]
	prefix := fmt.Sprintf("%sCATEGORIES_%s_", EnvPrefix, strings.ToUpper(name))

	modified := false

	if val := os.Getenv(prefix + "MAX_REQUESTS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cat.MaxRequests = i
			modified = true
		}
	}
	if val := os.Getenv(prefix + "WINDOW"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cat.Window = d
			modified = true
		}
	}

	if modified {
		cat.Description = describe(cat.MaxRequests, cat.Window)
		cfg.Throttle.Categories[name] = cat
	}
}

func setCategoryLimit(cfg *Config, name string, maxRequests int, window time.Duration) {
	if cfg.Throttle.Categories == nil {
		cfg.Throttle.Categories = make(map[string]CategoryConfig)
	}
	cat, ok := cfg.Throttle.Categories[name]
	if !ok {
		cat.Window = window
	}
	cat.MaxRequests = maxRequests
	cat.Description = describe(maxRequests, cat.Window)
	cfg.Throttle.Categories[name] = cat
}
