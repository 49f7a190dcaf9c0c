package tracing

import (
	"context"

	"taxmate-hq/throttle/pkg/throttle"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys for admission decisions.
const (
	AttrCategory  = attribute.Key("throttle.category")
	AttrOutcome   = attribute.Key("throttle.outcome")
	AttrLimit     = attribute.Key("throttle.limit")
	AttrRemaining = attribute.Key("throttle.remaining")
)

// RecordDecision annotates the span in ctx with d. Fail-open decisions mark
// the span as errored.
func RecordDecision(ctx context.Context, d throttle.Decision) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	span.SetAttributes(
		AttrCategory.String(string(d.Category)),
		AttrOutcome.String(string(d.Outcome)),
		AttrLimit.Int(d.Limit),
		AttrRemaining.Int(d.Remaining),
	)
	span.AddEvent("throttle.decision")

	if d.Outcome == throttle.OutcomeFailOpen && d.Err != nil {
		span.RecordError(d.Err)
		span.SetStatus(codes.Error, d.Err.Error())
	}
}
