package middleware

import (
	"mime"
	"net/http"

	"edu-platform/backend/internal/apperr"
	"edu-platform/backend/internal/server/response"
)

// MaxBytes caps each request body at limit bytes. Reads past the cap fail
// with *http.MaxBytesError, which maps to FileTooLarge.
func MaxBytes(limit int64) Stage {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limit > 0 && r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireJSON rejects a request that has a body whose Content-Type is not
// application/json.
func RequireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength != 0 && r.Body != nil && r.Body != http.NoBody {
			mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
			if err != nil || mt != "application/json" {
				response.WriteError(r.Context(), w, nil, apperr.ErrUnsupportedMediaType)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
