// Package telemetry wires the OpenTelemetry SDK to OTLP/gRPC exporters for
// traces, metrics and logs. When export is disabled every provider is a
// no-op, so callers never need to nil-check.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	lognoop "go.opentelemetry.io/otel/log/noop"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// InstrumentationName is the scope name for tracers, meters and loggers
// created by this module.
const InstrumentationName = "github.com/Brownie44l1/rawhttp"

// envEndpoint turns export on even when the config file leaves it off.
const envEndpoint = "OTEL_EXPORTER_OTLP_ENDPOINT"

type Config struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
	Endpoint    string `yaml:"endpoint"` // host:port of the collector
	Insecure    bool   `yaml:"insecure"`
}

// Active reports whether Setup will install exporters.
func (c Config) Active() bool {
	return c.Enabled || os.Getenv(envEndpoint) != ""
}

// Providers bundles the three signal providers and their shutdown hooks.
type Providers struct {
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
	LoggerProvider log.LoggerProvider

	shutdown []func(context.Context) error
}

// Noop returns providers that record nothing.
func Noop() *Providers {
	return &Providers{
		TracerProvider: tracenoop.NewTracerProvider(),
		MeterProvider:  metricnoop.NewMeterProvider(),
		LoggerProvider: lognoop.NewLoggerProvider(),
	}
}

// Setup builds the SDK providers and registers them globally. If setup
// fails part way, everything created so far is shut down.
func Setup(ctx context.Context, cfg Config) (*Providers, error) {
	if !cfg.Active() {
		return Noop(), nil
	}

	name := cfg.ServiceName
	if name == "" {
		name = "rawhttp"
	}
	res, err := resource.Merge(resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(name)))
	if err != nil {
		return nil, fmt.Errorf("telemetry: resource: %w", err)
	}

	p := &Providers{}
	fail := func(err error) (*Providers, error) {
		return nil, errors.Join(err, p.Shutdown(context.Background()))
	}

	traceOpts := []otlptracegrpc.Option{}
	metricOpts := []otlpmetricgrpc.Option{}
	logOpts := []otlploggrpc.Option{}
	if cfg.Endpoint != "" {
		traceOpts = append(traceOpts, otlptracegrpc.WithEndpoint(cfg.Endpoint))
		metricOpts = append(metricOpts, otlpmetricgrpc.WithEndpoint(cfg.Endpoint))
		logOpts = append(logOpts, otlploggrpc.WithEndpoint(cfg.Endpoint))
	}
	if cfg.Insecure {
		traceOpts = append(traceOpts, otlptracegrpc.WithInsecure())
		metricOpts = append(metricOpts, otlpmetricgrpc.WithInsecure())
		logOpts = append(logOpts, otlploggrpc.WithInsecure())
	}

	traceExporter, err := otlptracegrpc.New(ctx, traceOpts...)
	if err != nil {
		return fail(fmt.Errorf("telemetry: trace exporter: %w", err))
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	p.TracerProvider = tp
	p.shutdown = append(p.shutdown, tp.Shutdown)

	metricExporter, err := otlpmetricgrpc.New(ctx, metricOpts...)
	if err != nil {
		return fail(fmt.Errorf("telemetry: metric exporter: %w", err))
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
		sdkmetric.WithResource(res),
	)
	p.MeterProvider = mp
	p.shutdown = append(p.shutdown, mp.Shutdown)

	logExporter, err := otlploggrpc.New(ctx, logOpts...)
	if err != nil {
		return fail(fmt.Errorf("telemetry: log exporter: %w", err))
	}
	lp := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
		sdklog.WithResource(res),
	)
	p.LoggerProvider = lp
	p.shutdown = append(p.shutdown, lp.Shutdown)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	global.SetLoggerProvider(lp)

	return p, nil
}

// Enabled reports whether any exporter is installed.
func (p *Providers) Enabled() bool {
	return len(p.shutdown) > 0
}

// LogHandler returns an slog.Handler that emits records through the OTel
// log pipeline.
func (p *Providers) LogHandler() slog.Handler {
	return otelslog.NewHandler(InstrumentationName, otelslog.WithLoggerProvider(p.LoggerProvider))
}

// Shutdown flushes and stops every provider, newest first.
func (p *Providers) Shutdown(ctx context.Context) error {
	var errs []error
	for i := len(p.shutdown) - 1; i >= 0; i-- {
		errs = append(errs, p.shutdown[i](ctx))
	}
	p.shutdown = nil
	return errors.Join(errs...)
}
