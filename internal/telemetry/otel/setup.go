// Package otel wires OpenTelemetry for the auth core: OTLP/gRPC trace, metric
// and log providers, the auth event emitter and the gate counters.
package otel

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
)

const metricInterval = 10 * time.Second

// Providers bundles the SDK providers. Shutdown flushes and stops all of them.
type Providers struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *metric.MeterProvider
	LoggerProvider *sdklog.LoggerProvider
	Shutdown       func(context.Context) error
}

// NewProviders builds providers exporting over OTLP/gRPC to endpoint.
//
// endpoint may carry a scheme and path (http://collector:4317/v1/traces); only
// host:port is dialed. https uses TLS unless insecureOverride is set. An empty
// endpoint yields SDK providers with no exporters and a no-op Shutdown, so
// instruments and the event emitter still work in dev and tests.
func NewProviders(ctx context.Context, endpoint, serviceName, environment string, insecureOverride bool) (*Providers, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return &Providers{
			TracerProvider: sdktrace.NewTracerProvider(),
			MeterProvider:  metric.NewMeterProvider(),
			LoggerProvider: sdklog.NewLoggerProvider(),
			Shutdown:       func(context.Context) error { return nil },
		}, nil
	}

	target, insecure, err := parseEndpoint(endpoint, insecureOverride)
	if err != nil {
		return nil, err
	}
	res, err := newResource(serviceName, environment)
	if err != nil {
		return nil, err
	}

	p := &Providers{}
	var stops []func(context.Context) error
	fail := func(err error) (*Providers, error) {
		for i := len(stops) - 1; i >= 0; i-- {
			_ = stops[i](ctx)
		}
		return nil, err
	}

	if p.TracerProvider, err = newTracerProvider(ctx, target, insecure, res); err != nil {
		return fail(fmt.Errorf("otlp trace exporter: %w", err))
	}
	stops = append(stops, p.TracerProvider.Shutdown)

	if p.MeterProvider, err = newMeterProvider(ctx, target, insecure, res); err != nil {
		return fail(fmt.Errorf("otlp metric exporter: %w", err))
	}
	stops = append(stops, p.MeterProvider.Shutdown)

	if p.LoggerProvider, err = newLoggerProvider(ctx, target, insecure, res); err != nil {
		return fail(fmt.Errorf("otlp log exporter: %w", err))
	}
	stops = append(stops, p.LoggerProvider.Shutdown)

	// Reverse order: logs, metrics, traces.
	p.Shutdown = func(ctx context.Context) error {
		var errs []error
		for i := len(stops) - 1; i >= 0; i-- {
			errs = append(errs, stops[i](ctx))
		}
		return errors.Join(errs...)
	}
	return p, nil
}

// SetGlobal installs the tracer and meter providers globally so otelgrpc picks
// them up. The logger provider is passed to NewEventEmitter explicitly.
func (p *Providers) SetGlobal() {
	if p.TracerProvider != nil {
		otel.SetTracerProvider(p.TracerProvider)
	}
	if p.MeterProvider != nil {
		otel.SetMeterProvider(p.MeterProvider)
	}
}

func newResource(serviceName, environment string) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{semconv.ServiceNameKey.String(serviceName)}
	if environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironmentNameKey.String(environment))
	}
	return resource.Merge(resource.Default(), resource.NewWithAttributes(semconv.SchemaURL, attrs...))
}

func newTracerProvider(ctx context.Context, target string, insecure bool, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(target)}
	if insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exp, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp), sdktrace.WithResource(res)), nil
}

func newMeterProvider(ctx context.Context, target string, insecure bool, res *resource.Resource) (*metric.MeterProvider, error) {
	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(target)}
	if insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exp, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, err
	}
	reader := metric.NewPeriodicReader(exp, metric.WithInterval(metricInterval))
	return metric.NewMeterProvider(metric.WithResource(res), metric.WithReader(reader)), nil
}

func newLoggerProvider(ctx context.Context, target string, insecure bool, res *resource.Resource) (*sdklog.LoggerProvider, error) {
	opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(target)}
	if insecure {
		opts = append(opts, otlploggrpc.WithInsecure())
	}
	exp, err := otlploggrpc.New(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return sdklog.NewLoggerProvider(sdklog.WithProcessor(sdklog.NewBatchProcessor(exp)), sdklog.WithResource(res)), nil
}

// parseEndpoint reduces endpoint to the host:port the exporters dial.
// Scheme-less endpoints count as http; only https selects TLS, and only when
// insecureOverride is false.
func parseEndpoint(endpoint string, insecureOverride bool) (target string, insecure bool, err error) {
	if !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", false, fmt.Errorf("invalid OTLP endpoint %q: %w", endpoint, err)
	}
	if u.Host == "" {
		return "", false, fmt.Errorf("invalid OTLP endpoint %q: missing host", endpoint)
	}
	return u.Host, insecureOverride || u.Scheme != "https", nil
}
