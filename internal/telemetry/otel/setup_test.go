package otel

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestNewProviders_EmptyEndpoint(t *testing.T) {
	ctx := context.Background()
	for _, endpoint := range []string{"", "   "} {
		providers, err := NewProviders(ctx, endpoint, "test-service", "", false)
		if err != nil {
			t.Fatalf("NewProviders(%q): %v", endpoint, err)
		}
		if providers.TracerProvider == nil || providers.MeterProvider == nil || providers.LoggerProvider == nil {
			t.Fatalf("providers should not be nil: %+v", providers)
		}
		if err := providers.Shutdown(ctx); err != nil {
			t.Errorf("shutdown should be no-op for empty endpoint, got error: %v", err)
		}
		if err := providers.Shutdown(ctx); err != nil {
			t.Errorf("second shutdown: %v", err)
		}
	}
}

func TestNewProviders_WithEndpoint(t *testing.T) {
	ctx := context.Background()
	// Exporters dial lazily, so construction succeeds without a collector.
	providers, err := NewProviders(ctx, "localhost:4317", "test-service", "test", true)
	if err != nil {
		t.Fatalf("NewProviders: %v", err)
	}
	if providers.TracerProvider == nil || providers.MeterProvider == nil || providers.LoggerProvider == nil {
		t.Fatalf("providers should not be nil: %+v", providers)
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	_ = providers.Shutdown(shutdownCtx)
}

func TestNewProviders_InvalidURL(t *testing.T) {
	ctx := context.Background()
	testCases := []struct {
		name     string
		endpoint string
	}{
		{"invalid characters", "://invalid"},
		{"malformed URL", "http://[invalid"},
		{"missing host", "http://"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewProviders(ctx, tc.endpoint, "test-service", "", false); err == nil {
				t.Errorf("NewProviders(%q) should return error", tc.endpoint)
			}
		})
	}
}

func TestParseEndpoint(t *testing.T) {
	testCases := []struct {
		name         string
		endpoint     string
		override     bool
		wantTarget   string
		wantInsecure bool
	}{
		{"without protocol", "localhost:4317", false, "localhost:4317", true},
		{"http", "http://collector:4317", false, "collector:4317", true},
		{"https", "https://collector:4317", false, "collector:4317", false},
		{"https with override", "https://collector:4317", true, "collector:4317", true},
		{"path ignored", "http://localhost:4317/v1/traces", false, "localhost:4317", true},
		{"query ignored", "http://localhost:4317?param=value", false, "localhost:4317", true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			target, insecure, err := parseEndpoint(tc.endpoint, tc.override)
			if err != nil {
				t.Fatalf("parseEndpoint: %v", err)
			}
			if target != tc.wantTarget || insecure != tc.wantInsecure {
				t.Errorf("parseEndpoint(%q) = %q, %v; want %q, %v", tc.endpoint, target, insecure, tc.wantTarget, tc.wantInsecure)
			}
		})
	}
}

func TestSetGlobal_WithProviders(t *testing.T) {
	providers, err := NewProviders(context.Background(), "", "test-service", "test", false)
	if err != nil {
		t.Fatalf("NewProviders: %v", err)
	}

	oldTracerProvider := otel.GetTracerProvider()
	oldMeterProvider := otel.GetMeterProvider()
	defer func() {
		otel.SetTracerProvider(oldTracerProvider)
		otel.SetMeterProvider(oldMeterProvider)
	}()

	providers.SetGlobal()

	if otel.GetTracerProvider() == oldTracerProvider {
		t.Error("TracerProvider should be updated")
	}
	if otel.GetMeterProvider() == oldMeterProvider {
		t.Error("MeterProvider should be updated")
	}
}

func TestSetGlobal_PartialProviders(t *testing.T) {
	ctx := context.Background()
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(ctx) }()

	providers := &Providers{
		TracerProvider: tp,
		Shutdown:       func(context.Context) error { return nil },
	}

	oldTracerProvider := otel.GetTracerProvider()
	oldMeterProvider := otel.GetMeterProvider()
	defer func() {
		otel.SetTracerProvider(oldTracerProvider)
		otel.SetMeterProvider(oldMeterProvider)
	}()

	providers.SetGlobal()

	if otel.GetTracerProvider() == oldTracerProvider {
		t.Error("TracerProvider should be updated")
	}
	if otel.GetMeterProvider() != oldMeterProvider {
		t.Error("MeterProvider should not be updated when nil")
	}
}
