// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package telemetry initialises OpenTelemetry tracing for the API and notifier.
//
// Tracing is opt-in: with no endpoint, or with tracing disabled, the global
// provider stays the no-op default and spans cost nothing.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/taibuivan/marketplace-auth/internal/platform/config"
)

// ShutdownFunc flushes pending spans. Callers defer it with a bounded context.
type ShutdownFunc func(context.Context) error

// Setup registers a batching OTLP/HTTP tracer provider for serviceName.
func Setup(ctx context.Context, settings config.Tracing, serviceName, environment string) (ShutdownFunc, error) {
	noop := func(context.Context) error { return nil }

	if !settings.OTelEnabled || settings.OTelEndpoint == "" {
		return noop, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(settings.OTelEndpoint))
	if err != nil {
		return noop, fmt.Errorf("telemetry: failed to create exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.DeploymentEnvironment(environment),
		),
	)
	if err != nil {
		return noop, fmt.Errorf("telemetry: failed to build resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return provider.Shutdown, nil
}
