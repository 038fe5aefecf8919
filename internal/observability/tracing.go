package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "slunk"

// InitTracing installs a global TracerProvider whose spans go through the
// stdout exporter to w, so ingestion/query latency breakdowns are visible
// locally; the app passes stderr, never stdout. There is no OTLP exporter.
// Returns a shutdown func.
func InitTracing(ctx context.Context, serviceVersion string, w interface{ Write([]byte) (int, error) }) (func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName("slunk"),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("observability: build resource: %w", err)
	}

	exp, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithoutTimestamps())
	if err != nil {
		return nil, fmt.Errorf("observability: build trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// Tracer returns the package-wide tracer used to create spans around
// ingestion and query pipeline stages.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}
