package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"edu-platform/backend/internal/logging"
)

// RequestIDHeader carries the request id in and out.
const RequestIDHeader = "X-Request-ID"

const maxRequestIDLen = 128

// RequestID reuses a client-supplied X-Request-ID or assigns a new UUID, echoes
// it on the response, and stores it with method and path for log records.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		ctx := logging.WithRequest(r.Context(), id, r.Method, r.URL.Path)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
