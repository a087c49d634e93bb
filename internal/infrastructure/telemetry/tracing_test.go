package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aglc/backoffice/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// setupTestTracer installs an in-memory span recorder as the global provider.
func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
	})
	return sr
}

func attrMap(kvs []attribute.KeyValue) map[string]attribute.Value {
	m := make(map[string]attribute.Value, len(kvs))
	for _, kv := range kvs {
		m[string(kv.Key)] = kv.Value
	}
	return m
}

func TestStartServiceSpan(t *testing.T) {
	sr := setupTestTracer(t)

	ctx, span := telemetry.StartServiceSpan(context.Background(), "numbering", "allocate",
		telemetry.WithAttribute(telemetry.SpanAttrPrefix, "CR"),
		telemetry.WithAttribute(telemetry.SpanAttrCounter, uint64(7)),
		telemetry.WithSpanKind(trace.SpanKindServer),
	)
	assert.NotEmpty(t, telemetry.GetTraceID(ctx))
	assert.NotEmpty(t, telemetry.GetSpanID(ctx))
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "numbering.allocate", spans[0].Name())
	assert.Equal(t, trace.SpanKindServer, spans[0].SpanKind())

	attrs := attrMap(spans[0].Attributes())
	assert.Equal(t, "CR", attrs[telemetry.SpanAttrPrefix].AsString())
	assert.Equal(t, int64(7), attrs[telemetry.SpanAttrCounter].AsInt64())
}

func TestSetAttributesAndEvents(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "op")
	telemetry.SetAttributes(span, telemetry.SpanAttrPeriod, "2025", 42, "skipped", telemetry.SpanAttrDisplay, "CR202500007")
	telemetry.SetAttribute(span, telemetry.SpanAttrMode, "independent")
	telemetry.AddEvent(span, "counter_advanced", "from", 6, "to", 7)
	telemetry.SetOK(span)
	span.End()

	s := sr.Ended()[0]
	attrs := attrMap(s.Attributes())
	assert.Equal(t, "2025", attrs[telemetry.SpanAttrPeriod].AsString())
	assert.Equal(t, "CR202500007", attrs[telemetry.SpanAttrDisplay].AsString())
	assert.Equal(t, "independent", attrs[telemetry.SpanAttrMode].AsString())
	assert.Len(t, attrs, 3)

	require.Len(t, s.Events(), 1)
	assert.Equal(t, "counter_advanced", s.Events()[0].Name)
	assert.Equal(t, codes.Ok, s.Status().Code)
}

func TestRecordError(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "op")
	telemetry.RecordError(span, nil)
	telemetry.RecordError(span, errors.New("lock timeout"))
	span.End()

	s := sr.Ended()[0]
	assert.Equal(t, codes.Error, s.Status().Code)
	assert.Equal(t, "lock timeout", s.Status().Description)
	require.Len(t, s.Events(), 1)
}

func TestIDsWithoutSpan(t *testing.T) {
	assert.Empty(t, telemetry.GetTraceID(context.Background()))
	assert.Empty(t, telemetry.GetSpanID(context.Background()))
}
