// Package telemetry carries security events (logins, rejected tokens, denied
// routes) off the request path to an exporter.
package telemetry

import (
	"context"

	"edu-platform/backend/internal/telemetry/domain"
)

// EventEmitter exports one auth event. Best-effort; callers log and drop errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *domain.AuthEvent) error
}

// EmitterFunc adapts a plain function to EventEmitter.
type EmitterFunc func(ctx context.Context, event *domain.AuthEvent) error

// Emit calls f.
func (f EmitterFunc) Emit(ctx context.Context, event *domain.AuthEvent) error { return f(ctx, event) }
