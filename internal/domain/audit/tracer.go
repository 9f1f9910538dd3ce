package audit

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Tracer emits one span per decision and one child span per trail entry
// (spec's domain-stack wiring for the OTel dependency: "one span per
// decision, one child span per matched rule, verbose mode attaches
// constraint attributes").
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer wraps an OTel trace.Tracer. Pass otel.Tracer("veto") for the
// production tracer, or noop.NewTracerProvider().Tracer("veto") in tests.
func NewTracer(tracer trace.Tracer) *Tracer {
	return &Tracer{tracer: tracer}
}

// StartDecision opens the root span for one decision evaluation. Callers
// must End() the returned span when the decision completes.
func (t *Tracer) StartDecision(ctx context.Context, toolName, decisionID string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "veto.decide", trace.WithAttributes(
		attribute.String("veto.tool_name", toolName),
		attribute.String("veto.decision_id", decisionID),
	))
}

// RecordEntries emits one child span per trail entry under ctx's active
// span. Call after the decision completes, once per Trail.Entries().
func (t *Tracer) RecordEntries(ctx context.Context, entries []Entry) {
	for _, e := range entries {
		t.recordEntry(ctx, e)
	}
}

func (t *Tracer) recordEntry(ctx context.Context, e Entry) {
	_, span := t.tracer.Start(ctx, "veto.rule_match", trace.WithAttributes(
		attribute.String("veto.rule_id", e.RuleID),
		attribute.String("veto.result", string(e.Result)),
	))
	defer span.End()

	if e.Constraint != "" {
		span.SetAttributes(attribute.String("veto.constraint", e.Constraint))
	}
	if e.Path != "" {
		span.SetAttributes(
			attribute.String("veto.path", e.Path),
			attribute.String("veto.expected", e.Expected),
			attribute.String("veto.actual", e.Actual),
		)
	}
	if e.Message != "" {
		span.SetAttributes(attribute.String("veto.message", e.Message))
	}
}
