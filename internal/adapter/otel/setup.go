// Package otel provides OpenTelemetry instrumentation: metric instruments,
// span helpers, and a tracer setup stub pending an OTLP exporter.
package otel

import (
	"context"
	"log/slog"
)

// ShutdownFunc is called to flush and shut down the trace provider.
type ShutdownFunc func(ctx context.Context) error

// InitTracer returns a no-op shutdown function. Wiring an OTLP exporter and
// TracerProvider is deferred until a collector endpoint exists.
func InitTracer(serviceName string) ShutdownFunc {
	slog.Info("otel: tracer provider not configured, spans are no-op", "service", serviceName)
	return func(_ context.Context) error {
		return nil
	}
}
