package tracing

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/platformbuilds/mirador-sentinel/internal/models"
)

// TracerProvider manages the lifecycle of the OpenTelemetry tracer
type TracerProvider struct {
	tp *sdktrace.TracerProvider
}

// NotificationTracer wraps the spans emitted by alert dispatch and uptime
// sampling.
type NotificationTracer struct {
	tracer trace.Tracer
}

// NewTracerProvider creates an OTLP/gRPC tracer provider and installs it as
// the global provider.
func NewTracerProvider(serviceName, serviceVersion, otlpEndpoint string) (*TracerProvider, error) {
	exporter, err := otlptracegrpc.New(
		context.Background(),
		otlptracegrpc.WithEndpoint(otlpEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(serviceVersion),
			semconv.ServiceNamespaceKey.String("mirador"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	)

	otel.SetTracerProvider(tp)

	return &TracerProvider{tp: tp}, nil
}

// Shutdown flushes pending spans.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	return tp.tp.Shutdown(ctx)
}

// NewNotificationTracer resolves the tracer lazily through the global
// provider, so it is a no-op until NewTracerProvider has run.
func NewNotificationTracer(name string) *NotificationTracer {
	return &NotificationTracer{tracer: otel.Tracer(name)}
}

// StartDispatchSpan starts the parent span for one Dispatch call.
func (nt *NotificationTracer) StartDispatchSpan(ctx context.Context, alert *models.Alert) (context.Context, trace.Span) {
	return nt.tracer.Start(ctx, "alert_dispatch",
		trace.WithAttributes(
			attribute.String("alert.id", alert.AlertID),
			attribute.String("alert.component", alert.Component),
			attribute.String("alert.metric", alert.MetricName()),
			attribute.String("alert.severity", string(alert.Severity)),
		),
	)
}

// StartChannelSpan starts a child span for a single channel delivery.
func (nt *NotificationTracer) StartChannelSpan(ctx context.Context, channel string) (context.Context, trace.Span) {
	return nt.tracer.Start(ctx, "channel_send",
		trace.WithAttributes(
			attribute.String("channel.name", channel),
		),
	)
}

func (nt *NotificationTracer) StartSLASpan(ctx context.Context, windowHours int) (context.Context, trace.Span) {
	return nt.tracer.Start(ctx, "sla_compute",
		trace.WithAttributes(
			attribute.Int("sla.window_hours", windowHours),
		),
	)
}

// RecordDispatchOutcome annotates the dispatch span with the delivery summary.
func (nt *NotificationTracer) RecordDispatchOutcome(span trace.Span, suppressed bool, delivered, failed int) {
	span.SetAttributes(
		attribute.Bool("dispatch.suppressed", suppressed),
		attribute.Int("dispatch.delivered", delivered),
		attribute.Int("dispatch.failed", failed),
	)
	if failed > 0 {
		span.SetStatus(codes.Error, "one or more channels failed")
	}
}

func (nt *NotificationTracer) RecordChannelResult(span trace.Span, duration time.Duration, err error) {
	span.SetAttributes(attribute.Int64("channel.duration_ms", duration.Milliseconds()))
	if err != nil {
		nt.RecordError(span, err)
	}
}

// RecordError records an error on a span
func (nt *NotificationTracer) RecordError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attrs...)
	span.RecordError(err)
}
