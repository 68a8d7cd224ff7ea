package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"edu-platform/backend/internal/logging"
	"edu-platform/backend/internal/server/response"
)

// Recover turns a handler panic into an InternalError envelope. The panic
// value and stack go to the log only.
func Recover(logger *slog.Logger) Stage {
	logger = logging.OrDiscard(logger)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.ErrorContext(r.Context(), "panic in handler", "panic", fmt.Sprint(rec), "stack", string(debug.Stack()))
				response.WriteError(r.Context(), w, nil, fmt.Errorf("panic: %v", rec))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
