package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "adocs"

// Metrics holds all ADocS metric instruments.
type Metrics struct {
	GenerationsStarted   metric.Int64Counter
	GenerationsCompleted metric.Int64Counter
	GenerationsFailed    metric.Int64Counter
	ModelFallbacks       metric.Int64Counter
	SectionsInjected     metric.Int64Counter
	GenerationDuration   metric.Float64Histogram
	RetrievalDuration    metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.GenerationsStarted, err = meter.Int64Counter("adocs.generations.started",
		metric.WithDescription("Number of structure generations started"))
	if err != nil {
		return nil, err
	}

	m.GenerationsCompleted, err = meter.Int64Counter("adocs.generations.completed",
		metric.WithDescription("Number of structure generations completed"))
	if err != nil {
		return nil, err
	}

	m.GenerationsFailed, err = meter.Int64Counter("adocs.generations.failed",
		metric.WithDescription("Number of structure generations that exhausted all models"))
	if err != nil {
		return nil, err
	}

	m.ModelFallbacks, err = meter.Int64Counter("adocs.generations.fallbacks",
		metric.WithDescription("Number of times generation fell back to the next model"))
	if err != nil {
		return nil, err
	}

	m.SectionsInjected, err = meter.Int64Counter("adocs.sections.injected",
		metric.WithDescription("Number of custom sections injected into served structures"))
	if err != nil {
		return nil, err
	}

	m.GenerationDuration, err = meter.Float64Histogram("adocs.generation.duration",
		metric.WithDescription("Structure generation duration in seconds"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	m.RetrievalDuration, err = meter.Float64Histogram("adocs.retrieval.duration",
		metric.WithDescription("Knowledge base retrieval duration in seconds"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
