// Package observability wraps the OpenTelemetry tracer used by the
// fault-injection proxy handler and the script pool: one span per request
// through the rule/script/fault pipeline, one per should_inject call,
// exported via OTLP/HTTP when enabled and a no-op tracer otherwise so
// call sites never branch on whether tracing is on.
package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/oriys/rift/internal/config"
)

// Provider wraps the process-wide TracerProvider and the tracer handed to
// every call site, so Init/Shutdown are the only places that touch the
// SDK directly.
type Provider struct {
	tp      *sdktrace.TracerProvider
	tracer  trace.Tracer
	enabled bool
}

var global = &Provider{enabled: false, tracer: trace.NewNoopTracerProvider().Tracer("")}

// Init builds the global tracer from cfg. A disabled config installs a
// no-op tracer; Tracer() is always safe to call regardless.
func Init(ctx context.Context, cfg config.TracingConfig) error {
	if !cfg.Enabled {
		global = &Provider{enabled: false, tracer: trace.NewNoopTracerProvider().Tracer("")}
		return nil
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "riftd"
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion("1.0.0"),
		),
	)
	if err != nil {
		return fmt.Errorf("observability: build resource: %w", err)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.Endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return fmt.Errorf("observability: create OTLP exporter: %w", err)
	}

	sampler := sdktrace.AlwaysSample()
	if cfg.SampleRate < 1.0 && cfg.SampleRate >= 0 {
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRate)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	global = &Provider{tp: tp, tracer: tp.Tracer(serviceName), enabled: true}
	return nil
}

// Shutdown flushes and stops the tracer provider, if one was started.
func Shutdown(ctx context.Context) error {
	if global.tp == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return global.tp.Shutdown(ctx)
}

// Tracer returns the process-wide tracer, real or no-op.
func Tracer() trace.Tracer { return global.tracer }

// Enabled reports whether a real (non-no-op) tracer is installed.
func Enabled() bool { return global.enabled }
