package config

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// The process-wide configuration. The run command loads it once at startup
// and the Watcher swaps it on every successful reload.
var (
	current  atomic.Pointer[Config]
	initOnce sync.Once
)

// Initialize loads path with environment overrides and installs the result
// as the process-wide configuration. Only the first call has any effect.
func Initialize(path string) error {
	var err error
	initOnce.Do(func() {
		var cfg *Config
		cfg, err = LoadConfigWithEnvOverrides(path)
		if err == nil {
			current.Store(cfg)
		}
	})
	return err
}

// GetConfig returns the process-wide configuration, or nil before a
// successful Initialize. Code that can take a *Config argument should.
func GetConfig() *Config {
	return current.Load()
}

// SetConfig installs cfg as the process-wide configuration. Tests use it
// in place of Initialize.
func SetConfig(cfg *Config) {
	current.Store(cfg)
}

// ReloadConfig loads path again and installs it. On error the previous
// configuration stays in place, so a half-edited file never takes effect.
func ReloadConfig(path string) (*Config, error) {
	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		return nil, fmt.Errorf("failed to reload configuration: %w", err)
	}
	current.Store(cfg)
	return cfg, nil
}

// MustGetConfig is GetConfig for code that runs after startup succeeded.
// It panics when nothing was loaded.
func MustGetConfig() *Config {
	cfg := current.Load()
	if cfg == nil {
		panic("configuration not initialized: call Initialize first")
	}
	return cfg
}
