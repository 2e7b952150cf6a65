// Package observability sets up OpenTelemetry tracing for the reconciler.
// HTTP requests (otelgin), database calls (gorm plugin), queue jobs and
// provider calls all report into the tracer provider installed here.
package observability

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc/credentials"

	"github.com/tbourn/go-spend-reconciler/internal/config"
)

// Shutdown flushes pending spans and stops the exporter.
type Shutdown func(context.Context) error

// seams for tests
var (
	newExporter = func(ctx context.Context, opts ...otlptracegrpc.Option) (*otlptrace.Exporter, error) {
		return otlptrace.New(ctx, otlptracegrpc.NewClient(opts...))
	}
	newResource = func(ctx context.Context, service, version string) (*resource.Resource, error) {
		attrs := resource.WithAttributes(
			semconv.ServiceName(service),
			semconv.ServiceVersion(version),
		)
		if host, err := os.Hostname(); err == nil {
			return resource.New(ctx, attrs, resource.WithAttributes(semconv.ServiceInstanceID(host)))
		}
		return resource.New(ctx, attrs)
	}
)

// exporterOptions maps the OTLP settings onto gRPC client options.
func exporterOptions(cfg config.OTELConfig) []otlptracegrpc.Option {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		return append(opts, otlptracegrpc.WithInsecure())
	}
	return append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewClientTLSFromCert(nil, "")))
}

// Setup installs a global tracer provider exporting over OTLP/gRPC and
// W3C trace-context propagation. When tracing is disabled it installs
// nothing and returns a no-op Shutdown. Globals are untouched on error.
func Setup(ctx context.Context, cfg config.OTELConfig, version string) (Shutdown, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	exp, err := newExporter(ctx, exporterOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("otlp exporter: %w", err)
	}
	res, err := newResource(ctx, cfg.ServiceName, version)
	if err != nil {
		_ = exp.Shutdown(ctx)
		return nil, fmt.Errorf("otel resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))
	return tp.Shutdown, nil
}
