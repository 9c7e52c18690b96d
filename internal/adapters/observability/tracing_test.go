package observability_test

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"

	"trip_planner/internal/adapters/observability"
)

func TestInitTracing_Disabled(t *testing.T) {
	shutdown, err := observability.InitTracing(context.Background(), observability.TracingConfig{})
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestNewTracerProvider_ExportsWithServiceName(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tp, err := observability.NewTracerProvider(exp, "trip-api")
	if err != nil {
		t.Fatalf("NewTracerProvider: %v", err)
	}
	ctx := context.Background()

	_, span := tp.Tracer("test").Start(ctx, "orchestrate")
	span.End()
	if err := tp.ForceFlush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}

	spans := exp.GetSpans()
	if len(spans) != 1 || spans[0].Name != "orchestrate" {
		t.Fatalf("unexpected spans: %+v", spans)
	}
	var service string
	for _, kv := range spans[0].Resource.Attributes() {
		if kv.Key == semconv.ServiceNameKey {
			service = kv.Value.AsString()
		}
	}
	if service != "trip-api" {
		t.Fatalf("service.name = %q", service)
	}
	if err := tp.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
