// Package config provides configuration management for the throttle service.
//
// This package handles loading, validating, and managing configuration from
// YAML files with environment variable overrides, and can watch the file to
// hot reload the quota policy table.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("config.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("config.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention THROTTLE_SECTION_FIELD.
// For example:
//
//   - THROTTLE_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - THROTTLE_CATEGORIES_TEXT_QUERY_MAX_REQUESTS overrides throttle.categories.text_query.max_requests
//   - THROTTLE_GC_SCHEDULE overrides throttle.gc.schedule
//   - THROTTLE_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// THROTTLE_MAX_QUERIES_PER_HOUR and THROTTLE_MAX_DOCUMENTS_PER_DAY are
// shorthands for the two built-in categories. LOG_LEVEL is honoured when
// THROTTLE_TELEMETRY_LOGGING_LEVEL is unset.
//
// # Singleton Pattern
//
//	if err := config.Initialize("config.yaml"); err != nil {
//	    log.Fatal(err)
//	}
//	cfg := config.GetConfig()
//
// For testing, prefer dependency injection with explicit Config instances
// rather than the global singleton.
//
// # Example Configuration
//
//	server:
//	  listen_address: "127.0.0.1:8090"
//
//	throttle:
//	  categories:
//	    text_query:
//	      max_requests: 10
//	      window: 1h
//	      description: "10 queries per hour"
//	    document_analysis:
//	      max_requests: 3
//	      window: 24h
//	  watch: true
//	  gc:
//	    schedule: "*/15 * * * *"
//	    max_age: 24h
//
//	telemetry:
//	  logging:
//	    level: "info"
//	    format: "json"
//
// # Thread Safety
//
// All configuration access is thread-safe. The singleton uses a read-write
// lock so reloads never race with readers.
package config
