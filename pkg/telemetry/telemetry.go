// Package telemetry sets up OpenTelemetry tracing. Spans are exported as JSON
// to a writer, typically the file named by --trace-file.
package telemetry

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/xplshn/cppillr"

// Tracer returns the tracer used by the pipeline. It is a no-op until Init
// installs a provider.
func Tracer() trace.Tracer { return otel.Tracer(instrumentationName) }

// Init installs a global tracer provider exporting to w. The returned
// function flushes pending spans and must be called before exiting. A nil w
// leaves tracing disabled.
func Init(w io.Writer, version string) (shutdown func(context.Context) error, err error) {
	if w == nil {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("create exporter: %w", err)
	}
	res := resource.NewWithAttributes(
		"",
		attribute.String("service.name", "cppillr"),
		attribute.String("service.version", version),
	)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}
