package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"edu-platform/backend/internal/logging"
	"edu-platform/backend/internal/server/reqctx"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// AccessLog logs one line per request after it completes. Paths in skip are
// not logged (e.g. health probes).
func AccessLog(logger *slog.Logger, skip ...string) Stage {
	logger = logging.OrDiscard(logger)
	skipped := make(map[string]bool, len(skip))
	for _, p := range skip {
		skipped[p] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)
			if skipped[r.URL.Path] {
				return
			}
			if rec.status == 0 {
				rec.status = http.StatusOK
			}
			attrs := []any{
				"status", rec.status,
				"bytes", rec.bytes,
				"duration_ms", time.Since(start).Milliseconds(),
				"client_ip", ClientIP(r),
			}
			if uid, ok := reqctx.UserID(r.Context()); ok {
				attrs = append(attrs, "user_id", uid)
			}
			logger.InfoContext(r.Context(), "http request", attrs...)
		})
	}
}

// ClientIP returns the client IP from X-Forwarded-For, X-Real-IP, or the remote address.
func ClientIP(r *http.Request) string {
	if s := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); s != "" {
		if i := strings.Index(s, ","); i > 0 {
			s = strings.TrimSpace(s[:i])
		}
		return s
	}
	if s := strings.TrimSpace(r.Header.Get("X-Real-IP")); s != "" {
		return s
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
