package tracing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/platformbuilds/mirador-sentinel/internal/models"
)

func TestNotificationTracer_Spans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	nt := NewNotificationTracer("test")
	alert := models.NewAlert("t", "m", models.SeverityCritical, "ingest", models.WithMetric("lag"))

	ctx, span := nt.StartDispatchSpan(context.Background(), alert)
	_, child := nt.StartChannelSpan(ctx, "slack")
	nt.RecordChannelResult(child, 15*time.Millisecond, errors.New("webhook returned 500"))
	child.End()
	nt.RecordDispatchOutcome(span, false, 1, 1)
	span.End()

	ended := rec.Ended()
	require.Len(t, ended, 2)
	assert.Equal(t, "channel_send", ended[0].Name())
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Equal(t, "alert_dispatch", ended[1].Name())
	assert.Equal(t, ended[1].SpanContext().SpanID(), ended[0].Parent().SpanID())

	attrs := map[string]interface{}{}
	for _, kv := range ended[1].Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	assert.Equal(t, "ingest", attrs["alert.component"])
	assert.Equal(t, "lag", attrs["alert.metric"])
	assert.Equal(t, int64(1), attrs["dispatch.failed"])
}
