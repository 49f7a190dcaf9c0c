// Package telemetry groups the observability building blocks of the
// throttle service.
//
// # Components
//
//   - logging: structured slog loggers with request context fields and
//     optional user pseudonymization
//   - metrics: Prometheus collectors for admission decisions, faults,
//     garbage collection and HTTP traffic
//   - tracing: OpenTelemetry spans for HTTP requests and admission
//     decisions, exported over OTLP gRPC
//   - health: liveness, readiness and version endpoints
//
// # Usage
//
//	cfg := config.GetConfig()
//
//	logger, _ := logging.New(logging.Config{
//		Level:  cfg.Telemetry.Logging.Level,
//		Format: cfg.Telemetry.Logging.Format,
//	})
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	th := throttle.New(
//		throttle.WithPolicies(cfg.Throttle.Policies()),
//		throttle.WithLogger(logger),
//		throttle.WithObserver(collector),
//	)
//
//	tracer, _ := tracing.New(ctx, &cfg.Telemetry.Tracing, version)
//	defer tracer.Shutdown(context.Background())
package telemetry
