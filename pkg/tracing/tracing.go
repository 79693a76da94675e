// Package tracing sets up span export for the ktrace binaries. Delivery
// flights, collector requests and Kafka forwards all report through the
// global provider installed by Init.
package tracing

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"ktrace/internal/config"
)

// Components that install a provider.
const (
	ComponentCollector = "collector"
	ComponentCLI       = "cli"
)

const (
	AttrComponent = attribute.Key("ktrace.component")
	AttrAppID     = attribute.Key("ktrace.app_id")
	AttrStorage   = attribute.Key("ktrace.storage")
	AttrSink      = attribute.Key("ktrace.sink")
	AttrForward   = attribute.Key("ktrace.forward.topic")
)

const exporterTimeout = 5 * time.Second

// Provider owns the SDK tracer provider when export is enabled. With tracing
// disabled it holds nothing and spans go to the global no-op tracer.
type Provider struct {
	tp          *sdktrace.TracerProvider
	serviceName string
}

func (p *Provider) Tracer(name string) trace.Tracer {
	if p.tp == nil {
		return otel.Tracer(name)
	}
	return p.tp.Tracer(name)
}

// ServiceName is the service.name resource value, also used to name the
// HTTP server spans.
func (p *Provider) ServiceName() string {
	return p.serviceName
}

func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

// Init installs an OTLP exporting provider for component, with resource
// attributes describing how this process is configured.
func Init(cfg *config.Config, component string) (*Provider, error) {
	name := ServiceName(cfg.Tracing, component)
	if !cfg.Tracing.Enabled {
		return &Provider{serviceName: name}, nil
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(semconv.ServiceNameKey.String(name)),
		resource.WithAttributes(ResourceAttributes(cfg, component)...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), exporterTimeout)
	defer cancel()

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Tracing.OTLP.Endpoint)}
	if cfg.Tracing.OTLP.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.Tracing.Sampler)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Provider{tp: tp, serviceName: name}, nil
}

// ServiceName joins the configured base name and the component,
// e.g. "ktrace-collector".
func ServiceName(cfg config.TracingConfig, component string) string {
	base := cfg.ServiceName
	if base == "" {
		base = "ktrace"
	}
	if component == "" {
		return base
	}
	return base + "-" + component
}

// ResourceAttributes describes the process: the collector reports its sink
// and forwarding topic, SDK processes their app id and queue storage.
func ResourceAttributes(cfg *config.Config, component string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{AttrComponent.String(component)}

	switch component {
	case ComponentCollector:
		attrs = append(attrs, AttrSink.String(cfg.Collector.Sink.Type))
		if cfg.Collector.Forward.Enabled && cfg.Broker.Kafka.Topic != "" {
			attrs = append(attrs, AttrForward.String(cfg.Broker.Kafka.Topic))
		}
	default:
		if cfg.Tracker.AppID != "" {
			attrs = append(attrs, AttrAppID.String(cfg.Tracker.AppID))
		}
		if cfg.Storage.Type != "" {
			attrs = append(attrs, AttrStorage.String(cfg.Storage.Type))
		}
	}
	return attrs
}

func sampler(cfg config.SamplerConfig) sdktrace.Sampler {
	switch cfg.Type {
	case "always_off":
		return sdktrace.NeverSample()
	case "traceidratio":
		return sdktrace.TraceIDRatioBased(cfg.Param)
	case "parentbased_always_on":
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	case "parentbased_traceidratio":
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.Param))
	default:
		return sdktrace.AlwaysSample()
	}
}

func GetTracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
