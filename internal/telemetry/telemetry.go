// Package telemetry provides OpenTelemetry span helpers for the
// coordinator's periodic sweep, the server handshake, and UDP flushes,
// exported over OTLP/HTTP when an endpoint is configured. The UDP flush
// helper has no caller in this client.
package telemetry

import (
	"context"
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("mlatclient")

// Init installs a tracer provider, exporting spans to endpoint over
// OTLP/HTTP when endpoint is non-empty, or keeping spans local (and
// discarded) otherwise. The returned func shuts the provider down.
func Init(endpoint, serviceName string) func() {
	ctx := context.Background()

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
	)

	if endpoint == "" {
		tp := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
		otel.SetTracerProvider(tp)
		return func() { _ = tp.Shutdown(ctx) }
	}

	exp, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure())
	if err != nil {
		log.Printf("telemetry: failed to create OTLP exporter: %v", err)
		return func() {}
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return func() {
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("telemetry: error shutting down tracer: %v", err)
		}
	}
}

// StartSweep opens a span around one coordinator periodic sweep.
func StartSweep(ctx context.Context) (context.Context, trace.Span) {
	return tracer.Start(ctx, "coordinator.sweep")
}

// StartHandshake opens a span around a server handshake attempt.
func StartHandshake(ctx context.Context) (context.Context, trace.Span) {
	return tracer.Start(ctx, "serverlink.handshake")
}

// StartUDPFlush opens a span around one UDP datagram flush.
func StartUDPFlush(ctx context.Context) (context.Context, trace.Span) {
	return tracer.Start(ctx, "udpcodec.flush")
}
