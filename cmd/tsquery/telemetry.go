// =============================================================================
// telemetry.go - Stdout OpenTelemetry Exporters for --trace
// =============================================================================
//
// With --trace, every command becomes a span and the client's counters and
// duration histogram are collected. Both are written as JSON to stderr so
// they can be inspected without running a collector.
//
// =============================================================================

package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/tsquery/tsquery/queryprotocol/queryotel"

	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// telemetry bundles the SDK providers behind the client hook.
type telemetry struct {
	hook           *queryotel.Hook
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
}

// newTelemetry creates providers that export to w and a hook that reports
// server as its address.
func newTelemetry(w io.Writer, server string) (*telemetry, error) {
	traceExporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("trace exporter: %w", err)
	}
	metricExporter, err := stdoutmetric.New(stdoutmetric.WithWriter(w), stdoutmetric.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("metric exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(traceExporter))
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)))

	cfg := queryotel.DefaultConfig()
	cfg.TracerProvider = tp
	cfg.MeterProvider = mp
	cfg.Server = server

	return &telemetry{
		hook:           queryotel.New(cfg),
		tracerProvider: tp,
		meterProvider:  mp,
	}, nil
}

// Shutdown flushes and stops both providers.
func (t *telemetry) Shutdown(ctx context.Context) error {
	return errors.Join(
		t.tracerProvider.Shutdown(ctx),
		t.meterProvider.Shutdown(ctx),
	)
}
