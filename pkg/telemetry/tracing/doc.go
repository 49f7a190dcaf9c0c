// Package tracing provides OpenTelemetry distributed tracing for the
// throttle service.
//
// # Overview
//
// Every HTTP request handled by the service gets a server span. Incoming
// W3C Trace Context headers are honoured, so an admission check made by
// the chat front end shows up as a child of the front end's own trace:
//
//	traceparent: 00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01
//
// Admission decisions are recorded on the active span with
// RecordDecision (category, outcome, limit and remaining quota). User
// identifiers are never attached to spans.
//
// # Export
//
// Spans are batched and exported over OTLP gRPC. When tracing is disabled
// a noop provider is used and spans cost next to nothing.
//
//	telemetry:
//	  tracing:
//	    enabled: true
//	    endpoint: otel-collector:4317
//	    insecure: true
//	    sampler: ratio
//	    sample_ratio: 0.1
//
// # Sampling
//
// Three strategies are supported: always, never and ratio. All of them
// are wrapped in ParentBased, so a sampled caller keeps the whole trace
// sampled.
package tracing
