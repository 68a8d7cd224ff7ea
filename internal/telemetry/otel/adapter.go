package otel

import (
	"context"
	"strconv"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"edu-platform/backend/internal/telemetry"
	"edu-platform/backend/internal/telemetry/domain"
)

const instrumentationName = "edu.platform.auth"

// NewEventEmitter returns an EventEmitter that sends auth events as OTel log records via the given LoggerProvider.
// If provider is nil, returns a no-op emitter.
func NewEventEmitter(provider otellog.LoggerProvider) telemetry.EventEmitter {
	if provider == nil {
		return noopEmitter{}
	}
	return &otelEmitter{logger: provider.Logger(instrumentationName)}
}

var _ otellog.LoggerProvider = (*sdklog.LoggerProvider)(nil)

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *domain.AuthEvent) error { return nil }

type otelEmitter struct {
	logger otellog.Logger
}

// Emit converts the event to an OTel log record and emits it. Best-effort.
func (e *otelEmitter) Emit(ctx context.Context, event *domain.AuthEvent) error {
	if event == nil {
		return nil
	}
	e.logger.Emit(ctx, toRecord(event))
	return nil
}

func toRecord(event *domain.AuthEvent) otellog.Record {
	rec := otellog.Record{}
	if !event.OccurredAt.IsZero() {
		rec.SetTimestamp(event.OccurredAt)
	} else {
		rec.SetTimestamp(time.Now().UTC())
	}
	rec.SetEventName(string(event.Kind))
	rec.SetBody(otellog.StringValue(string(event.Kind)))
	if event.Outcome == domain.OutcomeFailure {
		rec.SetSeverity(otellog.SeverityWarn)
	} else {
		rec.SetSeverity(otellog.SeverityInfo)
	}
	rec.AddAttributes(otellog.String("event_type", string(event.Kind)))
	if event.Outcome != "" {
		rec.AddAttributes(otellog.String("outcome", event.Outcome))
	}
	if event.UserID != 0 {
		rec.AddAttributes(otellog.String("user_id", strconv.FormatInt(event.UserID, 10)))
	}
	if event.Username != "" {
		rec.AddAttributes(otellog.String("username", event.Username))
	}
	if event.Reason != "" {
		rec.AddAttributes(otellog.String("reason", event.Reason))
	}
	if event.RequestID != "" {
		rec.AddAttributes(otellog.String("request_id", event.RequestID))
	}
	if event.Method != "" {
		rec.AddAttributes(otellog.String("http.method", event.Method))
	}
	if event.Path != "" {
		rec.AddAttributes(otellog.String("http.route", event.Path))
	}
	return rec
}
