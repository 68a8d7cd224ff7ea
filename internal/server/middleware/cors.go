package middleware

import (
	"net/http"
	"slices"

	"github.com/go-chi/cors"
)

// CORSConfig lists what cross-origin callers may send.
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	// MaxAge is the preflight cache lifetime in seconds.
	MaxAge int
}

// CORS answers preflight requests and decorates responses for allowed
// origins. Credentials are allowed; preflights never reach later stages.
//
// A "*" origin is served by echoing the caller's Origin, since browsers drop
// a literal "*" on credentialed responses.
func CORS(cfg CORSConfig) Stage {
	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = 3600
	}
	opts := cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   cfg.AllowedMethods,
		AllowedHeaders:   cfg.AllowedHeaders,
		ExposedHeaders:   []string{RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           maxAge,
	}
	if slices.Contains(cfg.AllowedOrigins, "*") {
		opts.AllowedOrigins = nil
		opts.AllowOriginFunc = func(*http.Request, string) bool { return true }
	}
	h := cors.Handler(opts)
	return func(next http.Handler) http.Handler { return h(next) }
}
