package tracing

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"ktrace/internal/config"
)

func TestInit_Disabled(t *testing.T) {
	cfg := &config.Config{}
	p, err := Init(cfg, ComponentCollector)
	require.NoError(t, err)
	assert.Equal(t, "ktrace-collector", p.ServiceName())
	assert.NotNil(t, p.Tracer("test"))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestServiceName(t *testing.T) {
	assert.Equal(t, "ktrace", ServiceName(config.TracingConfig{}, ""))
	assert.Equal(t, "ktrace-cli", ServiceName(config.TracingConfig{}, ComponentCLI))
	assert.Equal(t, "shop-collector", ServiceName(config.TracingConfig{ServiceName: "shop"}, ComponentCollector))
}

func TestResourceAttributes(t *testing.T) {
	cfg := &config.Config{}
	cfg.Tracker.AppID = "shop"
	cfg.Storage.Type = "sqlite"
	cfg.Collector.Sink.Type = "postgres"
	cfg.Collector.Forward.Enabled = true
	cfg.Broker.Kafka.Topic = "ktrace.events"

	tests := []struct {
		name      string
		component string
		want      []attribute.KeyValue
	}{
		{
			name:      "collector",
			component: ComponentCollector,
			want: []attribute.KeyValue{
				AttrComponent.String("collector"),
				AttrSink.String("postgres"),
				AttrForward.String("ktrace.events"),
			},
		},
		{
			name:      "cli",
			component: ComponentCLI,
			want: []attribute.KeyValue{
				AttrComponent.String("cli"),
				AttrAppID.String("shop"),
				AttrStorage.String("sqlite"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResourceAttributes(cfg, tt.component))
		})
	}
}

func TestResourceAttributes_ForwardDisabled(t *testing.T) {
	cfg := &config.Config{}
	cfg.Collector.Sink.Type = "file"
	cfg.Broker.Kafka.Topic = "ktrace.events"

	attrs := ResourceAttributes(cfg, ComponentCollector)
	assert.Equal(t, []attribute.KeyValue{AttrComponent.String("collector"), AttrSink.String("file")}, attrs)
}

func TestInjectTraceContext(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	defer tp.Shutdown(context.Background())

	ctx, span := tp.Tracer("test").Start(context.Background(), "publish")
	defer span.End()

	headers := InjectTraceContext(ctx, []kafka.Header{{Key: "content-type", Value: []byte("application/json")}})
	require.Len(t, headers, 2)

	extracted := propagation.TraceContext{}.Extract(context.Background(), &kafkaHeaderCarrier{headers: headers})
	assert.Equal(t, span.SpanContext().TraceID(), trace.SpanContextFromContext(extracted).TraceID())
}

func TestSampler(t *testing.T) {
	assert.Equal(t, sdktrace.NeverSample().Description(), sampler(config.SamplerConfig{Type: "always_off"}).Description())
	assert.Equal(t, sdktrace.AlwaysSample().Description(), sampler(config.SamplerConfig{}).Description())
	assert.Equal(t, sdktrace.TraceIDRatioBased(0.25).Description(),
		sampler(config.SamplerConfig{Type: "traceidratio", Param: 0.25}).Description())
}
