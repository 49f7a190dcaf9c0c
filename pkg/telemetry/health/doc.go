// Package health provides liveness, readiness and version endpoints.
//
// Liveness only reports that the process is serving HTTP. Readiness runs
// every registered component check concurrently, each bounded by the
// checker timeout, and reports 503 when any of them fails. The service
// registers a check that the throttle registry lock can be acquired and a
// check that the garbage collection sweeper is running.
//
//	checker := health.New(2 * time.Second)
//	checker.RegisterCheck("throttle", func(ctx context.Context) error { ... })
//	mux.HandleFunc("GET /ready", checker.ReadinessHandler())
package health
