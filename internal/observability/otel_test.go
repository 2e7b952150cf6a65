package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/tbourn/go-spend-reconciler/internal/config"
)

func keepGlobals(t *testing.T) {
	t.Helper()
	tp, prop := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(prop)
	})
}

func enabled(name string, insecure bool) config.OTELConfig {
	return config.OTELConfig{Enabled: true, Insecure: insecure, Endpoint: "localhost:4317", ServiceName: name, SampleRatio: 1}
}

func TestSetup_DisabledIsNoop(t *testing.T) {
	keepGlobals(t)
	before := otel.GetTracerProvider()

	shutdown, err := Setup(context.Background(), config.OTELConfig{Enabled: false}, "v0")
	if err != nil || shutdown == nil {
		t.Fatalf("Setup = %v, %v", shutdown, err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("no-op shutdown: %v", err)
	}
	if otel.GetTracerProvider() != before {
		t.Fatalf("disabled setup replaced the provider")
	}
}

func TestSetup_InstallsProviderAndPropagator(t *testing.T) {
	for _, insecure := range []bool{true, false} {
		keepGlobals(t)
		shutdown, err := Setup(context.Background(), enabled("reconciler-test", insecure), "v1.2.3")
		if err != nil {
			t.Fatalf("insecure=%v: %v", insecure, err)
		}
		if _, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider); !ok {
			t.Fatalf("expected sdk tracer provider")
		}

		ctx, span := otel.Tracer("test").Start(context.Background(), "job")
		carrier := propagation.MapCarrier{}
		otel.GetTextMapPropagator().Inject(ctx, carrier)
		span.End()
		if carrier.Get("traceparent") == "" {
			t.Fatalf("traceparent not injected")
		}

		sctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
		_ = shutdown(sctx)
		cancel()
	}
}

func TestExporterOptions(t *testing.T) {
	if n := len(exporterOptions(enabled("x", true))); n != 2 {
		t.Fatalf("insecure options = %d", n)
	}
	if n := len(exporterOptions(enabled("x", false))); n != 2 {
		t.Fatalf("tls options = %d", n)
	}
}

func TestSetup_ErrorsLeaveGlobalsIntact(t *testing.T) {
	keepGlobals(t)
	origExp, origRes := newExporter, newResource
	t.Cleanup(func() { newExporter, newResource = origExp, origRes })

	prevTP, prevProp := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	check := func(label string) {
		t.Helper()
		if _, err := Setup(context.Background(), enabled("svc", true), "v0"); err == nil {
			t.Fatalf("%s: expected error", label)
		}
		if otel.GetTracerProvider() != prevTP || otel.GetTextMapPropagator() != prevProp {
			t.Fatalf("%s: globals changed on failure", label)
		}
	}

	newExporter = func(context.Context, ...otlptracegrpc.Option) (*otlptrace.Exporter, error) {
		return nil, errors.New("boom-exporter")
	}
	check("exporter")

	newExporter = origExp
	newResource = func(context.Context, string, string) (*resource.Resource, error) {
		return nil, errors.New("boom-resource")
	}
	check("resource")
}
