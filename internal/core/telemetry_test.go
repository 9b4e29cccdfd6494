// AngelaMos | 2026
// telemetry_test.go

package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/carterperez-dev/roadwatch/internal/config"
)

func TestDisabledTelemetryIsNoop(t *testing.T) {
	tel, err := NewTelemetry(context.Background(),
		config.OtelConfig{Enabled: false, ServiceName: "roadwatch"},
		config.AppConfig{Environment: "development"},
	)
	require.NoError(t, err)

	ctx, span := tel.Tracer.Start(context.Background(), "op")
	span.End()

	assert.Empty(t, TraceIDFromContext(ctx))
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestSpanHelpersRecordOnActiveSpan(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))

	ctx, span := tp.Tracer("test").Start(context.Background(), "reconcile.import")
	assert.Len(t, TraceIDFromContext(ctx), 32)

	AddSpanEvent(ctx, "import.failed", attribute.String("signalement.id", "abc"))
	SetSpanError(ctx, ErrUnavailable)
	span.End()

	ended := rec.Ended()
	require.Len(t, ended, 1)
	require.Len(t, ended[0].Events(), 2)
	assert.Equal(t, "import.failed", ended[0].Events()[0].Name)
	assert.Equal(t, "service unavailable", ended[0].Status().Description)
}
