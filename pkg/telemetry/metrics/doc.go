// Package metrics provides Prometheus metrics collection for the throttle
// service.
//
// # Overview
//
// The Collector owns a private Prometheus registry and exposes:
//
//   - Throttle metrics: admission decisions by category and outcome,
//     recovered faults, garbage collection runs and registry size. The
//     Collector implements throttle.Observer, so it is wired in with
//     throttle.WithObserver.
//   - HTTP metrics: request count and latency per route for the admin API.
//   - Go runtime and process metrics.
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	th := throttle.New(throttle.WithObserver(collector))
//	mux.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
//
// # Metric Names
//
// With the default "taxmate" namespace:
//
//	taxmate_throttle_decisions_total{category,outcome}  (category="unknown" for unlimited decisions)
//	taxmate_throttle_faults_total{operation}
//	taxmate_throttle_gc_runs_total
//	taxmate_throttle_gc_removed_users_total
//	taxmate_throttle_gc_duration_seconds
//	taxmate_throttle_registry_users
//	taxmate_http_requests_total{method,route,status}
//	taxmate_http_request_duration_seconds{method,route}
package metrics
