// Package server assembles the HTTP and gRPC surfaces: the stage pipeline,
// routes, and graceful serving.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"edu-platform/backend/internal/apperr"
	identityhandler "edu-platform/backend/internal/identity/handler"
	"edu-platform/backend/internal/logging"
	"edu-platform/backend/internal/policy/engine"
	"edu-platform/backend/internal/security"
	"edu-platform/backend/internal/server/middleware"
	"edu-platform/backend/internal/server/response"
	"edu-platform/backend/internal/telemetry"
	telemetryotel "edu-platform/backend/internal/telemetry/otel"
)

// HealthPath is the readiness endpoint; it is not access-logged.
const HealthPath = "/api/health"

const shutdownTimeout = 10 * time.Second

// HTTPDeps holds what the HTTP surface is built from. Auth and Health may be nil.
type HTTPDeps struct {
	Logger       *slog.Logger
	Verifier     security.TokenVerifier
	Policy       *engine.AccessPolicy
	Metrics      *telemetryotel.GateMetrics
	Events       telemetry.EventEmitter
	CORS         middleware.CORSConfig
	MaxBodyBytes int64
	Auth         *identityhandler.Handler
	Health       http.Handler
}

// NewHTTPHandler returns the router wrapped in the stage pipeline: request id,
// recovery, access log, CORS, body limit, gate, policy.
func NewHTTPHandler(deps HTTPDeps) http.Handler {
	logger := logging.OrDiscard(deps.Logger)
	opts := middleware.AuthOptions{Logger: logger, Metrics: deps.Metrics, Events: deps.Events}

	r := chi.NewRouter()
	r.NotFound(response.Handle(logger, func(http.ResponseWriter, *http.Request) error {
		return apperr.ErrNoRoute
	}))
	r.MethodNotAllowed(response.Handle(logger, func(http.ResponseWriter, *http.Request) error {
		return apperr.ErrMethodNotAllowed
	}))
	if deps.Health != nil {
		r.Method(http.MethodGet, HealthPath, deps.Health)
		r.Method(http.MethodHead, HealthPath, deps.Health)
	}
	if deps.Auth != nil {
		r.Route("/api/auth", func(r chi.Router) {
			r.Use(middleware.RequireJSON)
			deps.Auth.Routes(r)
		})
	}

	return middleware.Chain(r,
		middleware.RequestID,
		middleware.Recover(logger),
		middleware.AccessLog(logger, HealthPath),
		middleware.CORS(deps.CORS),
		middleware.MaxBytes(deps.MaxBodyBytes),
		middleware.Authenticate(deps.Verifier, opts),
		middleware.Authorize(deps.Policy, opts),
	)
}

// ServeHTTP runs srv until ctx is done, then shuts it down gracefully.
func ServeHTTP(ctx context.Context, srv *http.Server, logger *slog.Logger) error {
	logger = logging.OrDiscard(logger)
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
