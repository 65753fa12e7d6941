// Package otelbridge exports each consolidated Sample as OpenTelemetry
// metrics, disabled by default. It mirrors the teacher's otel.Metrics
// wrapper: a Config struct with Enabled/ExporterType, a no-op meter
// provider when disabled, and one registered instrument per field.
package otelbridge

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/bc-dunia/nanotick/internal/consolidator"
	"github.com/bc-dunia/nanotick/internal/sample"
)

// ExporterType selects where exported metrics go.
type ExporterType string

const (
	ExporterNone     ExporterType = "none"
	ExporterStdout   ExporterType = "stdout"
	ExporterOTLPGRPC ExporterType = "otlp-grpc"
	ExporterOTLPHTTP ExporterType = "otlp-http"
)

// Config holds the bridge's configuration.
type Config struct {
	// Enabled controls whether export is active. Default: false (no-op).
	Enabled bool

	// ServiceName attributes exported metrics.
	ServiceName string

	// ExporterType selects the exporter; ignored when Enabled is false.
	ExporterType ExporterType

	// OTLPEndpoint is used by the OTLP exporters, e.g. "localhost:4317".
	OTLPEndpoint string

	// OTLPInsecure disables TLS for OTLP connections.
	OTLPInsecure bool
}

// DefaultConfig returns a configuration with export disabled.
func DefaultConfig() *Config {
	return &Config{
		Enabled:      false,
		ServiceName:  "nanotick",
		ExporterType: ExporterNone,
	}
}

// Bridge publishes Samples as OpenTelemetry instruments.
type Bridge struct {
	config   *Config
	provider *sdkmetric.MeterProvider
	shutdown func(context.Context) error

	throughput     metric.Float64Gauge
	latency        metric.Float64Gauge
	loadPercentage metric.Float64Gauge
	numTasks       metric.Float64Gauge
	customField    metric.Float64Gauge
	inconsistent   metric.Int64Counter

	healthContributed metric.Int64Gauge
	healthRequested   metric.Int64Gauge
	healthWaitNanos   metric.Int64Gauge
}

// New builds a Bridge. When cfg.Enabled is false, every instrument is
// backed by a no-op meter provider, so Publish calls are cheap and safe
// even when export is off.
func New(ctx context.Context, cfg *Config) (*Bridge, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	b := &Bridge{config: cfg}

	if !cfg.Enabled || cfg.ExporterType == ExporterNone {
		b.provider = sdkmetric.NewMeterProvider()
		b.shutdown = func(context.Context) error { return nil }
		return b, b.registerInstruments(b.provider.Meter(cfg.ServiceName))
	}

	exporter, err := b.createExporter(ctx)
	if err != nil {
		return nil, fmt.Errorf("otelbridge: create exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes("", semconv.ServiceName(cfg.ServiceName)))
	if err != nil {
		return nil, fmt.Errorf("otelbridge: build resource: %w", err)
	}

	b.provider = sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		sdkmetric.WithResource(res),
	)
	b.shutdown = b.provider.Shutdown

	return b, b.registerInstruments(b.provider.Meter(cfg.ServiceName))
}

func (b *Bridge) createExporter(ctx context.Context) (sdkmetric.Exporter, error) {
	switch b.config.ExporterType {
	case ExporterStdout:
		return stdoutmetric.New()
	case ExporterOTLPGRPC:
		opts := []otlpmetricgrpc.Option{}
		if b.config.OTLPEndpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(b.config.OTLPEndpoint))
		}
		if b.config.OTLPInsecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		return otlpmetricgrpc.New(ctx, opts...)
	case ExporterOTLPHTTP:
		opts := []otlpmetrichttp.Option{}
		if b.config.OTLPEndpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(b.config.OTLPEndpoint))
		}
		if b.config.OTLPInsecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		return otlpmetrichttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unknown exporter type: %s", b.config.ExporterType)
	}
}

func (b *Bridge) registerInstruments(meter metric.Meter) error {
	var err error
	if b.throughput, err = meter.Float64Gauge("nanotick.sample.throughput", metric.WithUnit("1/s")); err != nil {
		return err
	}
	if b.latency, err = meter.Float64Gauge("nanotick.sample.latency", metric.WithUnit("ns")); err != nil {
		return err
	}
	if b.loadPercentage, err = meter.Float64Gauge("nanotick.sample.load_percentage", metric.WithUnit("%")); err != nil {
		return err
	}
	if b.numTasks, err = meter.Float64Gauge("nanotick.sample.num_tasks"); err != nil {
		return err
	}
	if b.customField, err = meter.Float64Gauge("nanotick.sample.custom_field"); err != nil {
		return err
	}
	if b.inconsistent, err = meter.Int64Counter("nanotick.sample.inconsistent"); err != nil {
		return err
	}
	if b.healthContributed, err = meter.Int64Gauge("nanotick.consolidation.slots_contributed"); err != nil {
		return err
	}
	if b.healthRequested, err = meter.Int64Gauge("nanotick.consolidation.slots_requested"); err != nil {
		return err
	}
	if b.healthWaitNanos, err = meter.Int64Gauge("nanotick.consolidation.wait_nanos"); err != nil {
		return err
	}
	return nil
}

// Publish records one Sample's fields as gauge/counter observations.
func (b *Bridge) Publish(ctx context.Context, s sample.Sample) {
	b.throughput.Record(ctx, s.Throughput)
	b.latency.Record(ctx, s.Latency)
	b.loadPercentage.Record(ctx, s.LoadPercentage)
	b.numTasks.Record(ctx, s.NumTasks)
	for i, v := range s.CustomFields {
		b.customField.Record(ctx, v, metric.WithAttributes(attribute.Int("index", i)))
	}
	if s.Inconsistent {
		b.inconsistent.Add(ctx, 1)
	}
}

// PublishHealth records one consolidation cycle's QueueHealth snapshot.
func (b *Bridge) PublishHealth(ctx context.Context, h consolidator.QueueHealth) {
	b.healthContributed.Record(ctx, int64(h.SlotsContributed))
	b.healthRequested.Record(ctx, int64(h.SlotsRequested))
	b.healthWaitNanos.Record(ctx, h.WaitNanos)
}

// Shutdown flushes and closes the underlying meter provider.
func (b *Bridge) Shutdown(ctx context.Context) error {
	return b.shutdown(ctx)
}
