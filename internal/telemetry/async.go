package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"edu-platform/backend/internal/telemetry/domain"
)

// emitTimeout bounds a single background emit.
const emitTimeout = 5 * time.Second

var inflight sync.WaitGroup

// EmitAsync hands event to emitter on a background goroutine so the request
// path never waits on the collector. Failures are logged and dropped.
//
// A nil emitter or event is a no-op. The goroutine runs on its own context so a
// cancelled request does not abort the export.
func EmitAsync(emitter EventEmitter, event *domain.AuthEvent) {
	if emitter == nil || event == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	inflight.Add(1)
	go func() {
		defer inflight.Done()
		emitCtx, cancel := context.WithTimeout(context.Background(), emitTimeout)
		defer cancel()
		if err := emitter.Emit(emitCtx, event); err != nil {
			slog.Error("telemetry: async emit failed", "error", err, "event", string(event.Kind), "outcome", event.Outcome)
		}
	}()
}

// Drain waits until every emit started by EmitAsync has returned, or ctx is done.
// Call it after the servers stop and before shutting down the OTel providers.
func Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
