package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// GateMetrics counts authentication gate and access policy outcomes.
type GateMetrics struct {
	verified metric.Int64Counter
	rejected metric.Int64Counter
	denied   metric.Int64Counter
}

// NewGateMetrics registers the gate counters on provider's meter.
func NewGateMetrics(provider metric.MeterProvider) (*GateMetrics, error) {
	meter := provider.Meter(instrumentationName)
	verified, err := meter.Int64Counter("auth.tokens.verified",
		metric.WithDescription("Bearer tokens that verified and attached a principal"))
	if err != nil {
		return nil, err
	}
	rejected, err := meter.Int64Counter("auth.tokens.rejected",
		metric.WithDescription("Bearer tokens that failed verification"))
	if err != nil {
		return nil, err
	}
	denied, err := meter.Int64Counter("access.denied",
		metric.WithDescription("Requests refused by the access policy"))
	if err != nil {
		return nil, err
	}
	return &GateMetrics{verified: verified, rejected: rejected, denied: denied}, nil
}

// TokenVerified records a successful verification.
func (m *GateMetrics) TokenVerified(ctx context.Context) {
	if m == nil {
		return
	}
	m.verified.Add(ctx, 1)
}

// TokenRejected records a failed verification with its reason ("invalid" or "expired").
func (m *GateMetrics) TokenRejected(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// AccessDenied records a policy refusal with the catalog code it produced.
func (m *GateMetrics) AccessDenied(ctx context.Context, code int) {
	if m == nil {
		return
	}
	m.denied.Add(ctx, 1, metric.WithAttributes(attribute.Int("code", code)))
}
