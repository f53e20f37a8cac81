// Package queryotel provides OpenTelemetry instrumentation for ServerQuery
// clients. It implements the [queryprotocol.Hook] interface to add tracing
// and metrics to command execution.
//
// Usage:
//
//	client := queryprotocol.NewClient(
//	    queryprotocol.WithHook(queryotel.New(queryotel.DefaultConfig())),
//	)
package queryotel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tsquery/tsquery/queryprotocol"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "serverquery"

// Config configures OpenTelemetry instrumentation for a ServerQuery client.
type Config struct {
	// TracerProvider supplies the tracer. Defaults to otel.GetTracerProvider().
	TracerProvider trace.TracerProvider
	// MeterProvider supplies the meter. Defaults to otel.GetMeterProvider().
	MeterProvider metric.MeterProvider
	// EnableTracing enables span creation. Default true.
	EnableTracing bool
	// EnableMetrics enables counter and histogram recording. Default true.
	EnableMetrics bool
	// Server is the serverquery.server attribute value (typically host:port).
	Server string
	// CustomAttributes are added to every span.
	CustomAttributes []attribute.KeyValue
}

// DefaultConfig returns a Config with tracing and metrics enabled.
// TracerProvider and MeterProvider are resolved from the global OTel SDK
// when the hook is created.
func DefaultConfig() Config {
	return Config{
		EnableTracing: true,
		EnableMetrics: true,
	}
}

// Hook implements queryprotocol.Hook with OpenTelemetry tracing and metrics.
type Hook struct {
	cfg                 Config
	tracer              trace.Tracer
	commandCounter      metric.Int64Counter
	durationHistogram   metric.Float64Histogram
	notificationCounter metric.Int64Counter
}

var _ queryprotocol.Hook = (*Hook)(nil)

// spanToken is the HookToken returned by CommandSent.
type spanToken struct {
	span      trace.Span
	startTime time.Time
}

// New creates a hook from cfg.
func New(cfg Config) *Hook {
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = otel.GetTracerProvider()
	}
	if cfg.MeterProvider == nil {
		cfg.MeterProvider = otel.GetMeterProvider()
	}

	h := &Hook{
		cfg:    cfg,
		tracer: cfg.TracerProvider.Tracer(instrumentationName),
	}

	if cfg.EnableMetrics {
		meter := cfg.MeterProvider.Meter(instrumentationName)
		h.commandCounter, _ = meter.Int64Counter("serverquery.client.commands",
			metric.WithUnit("{command}"),
			metric.WithDescription("Number of ServerQuery commands answered"),
		)
		h.durationHistogram, _ = meter.Float64Histogram("serverquery.client.duration",
			metric.WithUnit("s"),
			metric.WithDescription("Time from writing a command to its terminator"),
		)
		h.notificationCounter, _ = meter.Int64Counter("serverquery.client.notifications",
			metric.WithUnit("{notification}"),
			metric.WithDescription("Number of notifications received"),
		)
	}

	return h
}

// CommandSent starts a client span for the command.
func (h *Hook) CommandSent(info queryprotocol.CommandInfo) queryprotocol.HookToken {
	token := &spanToken{startTime: time.Now()}
	if !h.cfg.EnableTracing {
		return token
	}

	attrs := []attribute.KeyValue{
		attribute.String("rpc.system", "serverquery"),
		attribute.String("rpc.method", info.Name),
		attribute.String("serverquery.command_id", info.ID.String()),
		attribute.Int("serverquery.options", info.Options),
		attribute.Int("serverquery.params", info.Params),
		attribute.Float64("serverquery.queue_wait", info.SentAt.Sub(info.QueuedAt).Seconds()),
	}
	if h.cfg.Server != "" {
		attrs = append(attrs, attribute.String("serverquery.server", h.cfg.Server))
	}
	attrs = append(attrs, h.cfg.CustomAttributes...)

	_, token.span = h.tracer.Start(context.Background(), fmt.Sprintf("serverquery/%s", info.Name),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithTimestamp(info.SentAt),
		trace.WithAttributes(attrs...),
	)
	return token
}

// CommandDone records metrics and ends the span.
func (h *Hook) CommandDone(token queryprotocol.HookToken, info queryprotocol.CommandInfo, c queryprotocol.Completion) {
	st, ok := token.(*spanToken)
	if !ok {
		return
	}

	duration := time.Since(st.startTime)
	ctx := context.Background()

	status := "ok"
	if c.Err != nil {
		status = "error"
	}

	if h.cfg.EnableMetrics {
		metricAttrs := metric.WithAttributes(
			attribute.String("rpc.method", info.Name),
			attribute.String("status", status),
		)
		if h.commandCounter != nil {
			h.commandCounter.Add(ctx, 1, metricAttrs)
		}
		if h.durationHistogram != nil {
			h.durationHistogram.Record(ctx, duration.Seconds(), metricAttrs)
		}
	}

	if st.span == nil || !st.span.IsRecording() {
		return
	}

	if c.Err != nil {
		st.span.SetStatus(codes.Error, c.Err.Error())
		st.span.RecordError(c.Err)
		var errInfo *queryprotocol.ErrorInfo
		if errors.As(c.Err, &errInfo) {
			st.span.SetAttributes(attribute.Int64("serverquery.error_id", errInfo.ErrorID))
		}
	} else {
		st.span.SetStatus(codes.Ok, "")
	}
	if c.Result != nil {
		st.span.SetAttributes(attribute.Int("serverquery.records", c.Result.Data.Len()))
	}
	st.span.End()
}

// NotificationReceived counts the notification by event name.
func (h *Hook) NotificationReceived(n queryprotocol.Notification) {
	if !h.cfg.EnableMetrics || h.notificationCounter == nil {
		return
	}
	h.notificationCounter.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("serverquery.event", n.Event)),
	)
}
