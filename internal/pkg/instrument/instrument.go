// Package instrument sets up OpenTelemetry tracing, metrics and logs and
// installs the process wide slog handler.
package instrument

import (
	"context"
	"errors"
	"os"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Instrumentation hands out tracers and meters.
type Instrumentation interface {
	Tracer(name string) trace.Tracer
	Meter(name string) metric.Meter
	Shutdown(ctx context.Context) error
}

// Config drives New.
type Config struct {
	// Enabled turns on OTLP export. Structured stdout logging is installed either way.
	Enabled          bool
	ServiceName      string
	ServiceVersion   string
	Environment      string
	OTLPEndpoint     string
	OTLPSecure       bool
	TraceSampleRatio float64
	MetricsInterval  time.Duration
	LogLevel         string
	MaskFields       []string
}

type providers struct {
	tp *sdktrace.TracerProvider
	mp *sdkmetric.MeterProvider
	lp *sdklog.LoggerProvider
}

// New installs the default logger and, when enabled, the OTLP pipelines.
func New(ctx context.Context, cfg *Config) (Instrumentation, error) {
	logOpts := LogOptions{
		ServiceName: cfg.ServiceName,
		Level:       ParseLevel(cfg.LogLevel),
		MaskFields:  cfg.MaskFields,
	}

	if !cfg.Enabled {
		InstallLogger(os.Stdout, logOpts)
		return NewNoop(), nil
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		attribute.String("env", cfg.Environment),
	))
	if err != nil {
		return nil, err
	}

	traceOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
	metricOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint)}
	logExpOpts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(cfg.OTLPEndpoint)}
	if !cfg.OTLPSecure {
		traceOpts = append(traceOpts, otlptracegrpc.WithInsecure())
		metricOpts = append(metricOpts, otlpmetricgrpc.WithInsecure())
		logExpOpts = append(logExpOpts, otlploggrpc.WithInsecure())
	}

	traceExp, err := otlptracegrpc.New(ctx, traceOpts...)
	if err != nil {
		return nil, err
	}
	metricExp, err := otlpmetricgrpc.New(ctx, metricOpts...)
	if err != nil {
		return nil, err
	}
	logExp, err := otlploggrpc.New(ctx, logExpOpts...)
	if err != nil {
		return nil, err
	}

	ratio := min(max(cfg.TraceSampleRatio, 0), 1)
	interval := cfg.MetricsInterval
	if interval <= 0 {
		interval = time.Minute
	}

	p := &providers{
		tp: sdktrace.NewTracerProvider(
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
			sdktrace.WithBatcher(traceExp),
		),
		mp: sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp, sdkmetric.WithInterval(interval))),
		),
		lp: sdklog.NewLoggerProvider(
			sdklog.WithResource(res),
			sdklog.WithProcessor(sdklog.NewBatchProcessor(logExp)),
		),
	}

	logOpts.LoggerProvider = p.lp
	InstallLogger(os.Stdout, logOpts)

	return p, nil
}

func (p *providers) Tracer(name string) trace.Tracer { return p.tp.Tracer(name) }

func (p *providers) Meter(name string) metric.Meter { return p.mp.Meter(name) }

func (p *providers) Shutdown(ctx context.Context) error {
	return errors.Join(p.tp.Shutdown(ctx), p.mp.Shutdown(ctx), p.lp.Shutdown(ctx))
}

type noop struct {
	tp trace.TracerProvider
	mp metric.MeterProvider
}

// NewNoop discards all telemetry. Used in tests and when export is disabled.
func NewNoop() Instrumentation {
	return &noop{tp: tracenoop.NewTracerProvider(), mp: metricnoop.NewMeterProvider()}
}

func (n *noop) Tracer(name string) trace.Tracer { return n.tp.Tracer(name) }

func (n *noop) Meter(name string) metric.Meter { return n.mp.Meter(name) }

func (*noop) Shutdown(context.Context) error { return nil }
