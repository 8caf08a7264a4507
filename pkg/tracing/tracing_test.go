package tracing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := tracesdk.NewTracerProvider(tracesdk.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(previous)
		_ = tp.Shutdown(context.Background())
	})
	return recorder
}

func attrValue(attrs []attribute.KeyValue, key attribute.Key) (string, bool) {
	for _, kv := range attrs {
		if kv.Key == key {
			return kv.Value.Emit(), true
		}
	}
	return "", false
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, "sharecast", cfg.ServiceName)
	assert.Equal(t, "http://localhost:14268/api/traces", cfg.JaegerURL)
	assert.Equal(t, 1.0, cfg.SampleRate)
}

func TestInitDisabled(t *testing.T) {
	tp, err := Init(Config{Enabled: false})
	require.NoError(t, err)
	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestTraceShareOperation(t *testing.T) {
	recorder := recordSpans(t)

	_, span := TraceShareOperation(context.Background(), "start", "share-1")
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "share.start", spans[0].Name())

	id, ok := attrValue(spans[0].Attributes(), ShareIDKey)
	require.True(t, ok)
	assert.Equal(t, "share-1", id)
}

func TestTraceShareOperationWithoutShareID(t *testing.T) {
	recorder := recordSpans(t)

	_, span := TraceShareOperation(context.Background(), "stop", "")
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	_, ok := attrValue(spans[0].Attributes(), ShareIDKey)
	assert.False(t, ok)
}

func TestTracePublish(t *testing.T) {
	recorder := recordSpans(t)

	_, span := TracePublish(context.Background(), "add", "screen-video-0-abc", "video")
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "publish.add", spans[0].Name())
	name, _ := attrValue(spans[0].Attributes(), TrackNameKey)
	assert.Equal(t, "screen-video-0-abc", name)
}

func TestRecordError(t *testing.T) {
	recorder := recordSpans(t)

	ctx, span := StartSpan(context.Background(), "test")
	RecordError(ctx, errors.New("boom"))
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "boom", spans[0].Status().Description)
}

func TestMeasureDuration(t *testing.T) {
	recorder := recordSpans(t)

	ctx, span := StartSpan(context.Background(), "test")
	MeasureDuration(ctx, time.Now().Add(-20*time.Millisecond), "test.operation")
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	_, ok := attrValue(spans[0].Attributes(), DurationKey)
	assert.True(t, ok)
}

func TestHelpersWithoutRecordingSpan(t *testing.T) {
	ctx := context.Background()
	AddSpanAttributes(ctx, attribute.String("k", "v"))
	RecordError(ctx, errors.New("ignored"))
	SetSpanStatus(ctx, codes.Ok, "")
}
