package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/flowguard/config"
)

// restoreGlobals 在测试结束时还原全局 provider
func restoreGlobals(t *testing.T) {
	t.Helper()
	tp := otel.GetTracerProvider()
	mp := otel.GetMeterProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(tp)
		otel.SetMeterProvider(mp)
	})
}

func shutdownQuickly(t *testing.T, p *Providers) {
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = p.Shutdown(ctx)
	})
}

func TestInit_Disabled(t *testing.T) {
	restoreGlobals(t)

	p, err := Init(context.Background(), config.TelemetryConfig{}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.False(t, p.Enabled())
	assert.Nil(t, p.mp)
	_, isSDK := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	assert.False(t, isSDK)
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestInit_EnabledRegistersGlobals(t *testing.T) {
	restoreGlobals(t)

	cfg := config.DefaultTelemetryConfig()
	cfg.Enabled = true
	cfg.ServiceName = ""
	p, err := Init(context.Background(), cfg, zaptest.NewLogger(t),
		WithServiceVersion("1.2.3"),
		WithAttributes(attribute.String("flowguard.mode", config.ModeLocal)))
	require.NoError(t, err)
	shutdownQuickly(t, p)

	assert.True(t, p.Enabled())
	_, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	assert.True(t, ok)
	_, ok = otel.GetMeterProvider().(*sdkmetric.MeterProvider)
	assert.True(t, ok)

	// 退出时导出器连不上 collector 也不能阻塞超过 deadline
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NotPanics(t, func() { _ = p.Shutdown(ctx) })
}

func TestProviders_NilSafe(t *testing.T) {
	var p *Providers
	assert.False(t, p.Enabled())
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestSampler(t *testing.T) {
	tests := []struct {
		rate    float64
		sampled bool
	}{
		{rate: -1, sampled: false},
		{rate: 0, sampled: false},
		{rate: 1, sampled: true},
		{rate: 7, sampled: true},
	}
	for _, tt := range tests {
		res := Sampler(tt.rate).ShouldSample(sdktrace.SamplingParameters{
			ParentContext: context.Background(),
			TraceID:       trace.TraceID{0x01},
			Name:          "flow.execute",
		})
		assert.Equal(t, tt.sampled, res.Decision == sdktrace.RecordAndSample, "rate %v", tt.rate)
	}

	// 上游已采样时遵循上游决策
	parent := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x02},
		SpanID:     trace.SpanID{0x03},
		TraceFlags: trace.FlagsSampled,
	}))
	res := Sampler(0).ShouldSample(sdktrace.SamplingParameters{ParentContext: parent, TraceID: trace.TraceID{0x02}})
	assert.Equal(t, sdktrace.RecordAndSample, res.Decision)
}

func TestBuildVersion(t *testing.T) {
	assert.Equal(t, "dev", buildVersion())
}

func TestTraceID(t *testing.T) {
	assert.Empty(t, TraceID(context.Background()))

	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, span := tp.Tracer("test").Start(context.Background(), "flow.execute")
	defer span.End()

	id := TraceID(ctx)
	assert.Len(t, id, 32)
	assert.Equal(t, span.SpanContext().TraceID().String(), id)
}
