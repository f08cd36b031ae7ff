package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "adocs"

// StartGenerationSpan starts a span for one structure generation.
func StartGenerationSpan(ctx context.Context, repoID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "generation",
		trace.WithAttributes(
			attribute.String("repo.id", repoID),
		),
	)
}

// StartRetrievalSpan starts a span for a knowledge base top-k lookup.
func StartRetrievalSpan(ctx context.Context, k int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "retrieval",
		trace.WithAttributes(
			attribute.Int("retrieval.k", k),
		),
	)
}

// StartInjectionSpan starts a span for section injection on a served structure.
func StartInjectionSpan(ctx context.Context, repoID, strategy string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "injection",
		trace.WithAttributes(
			attribute.String("repo.id", repoID),
			attribute.String("injection.strategy", strategy),
		),
	)
}
