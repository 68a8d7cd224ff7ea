package middleware

import (
	"log/slog"
	"net/http"

	"edu-platform/backend/internal/apperr"
	identitydomain "edu-platform/backend/internal/identity/domain"
	"edu-platform/backend/internal/logging"
	"edu-platform/backend/internal/policy/engine"
	"edu-platform/backend/internal/security"
	"edu-platform/backend/internal/server/reqctx"
	"edu-platform/backend/internal/server/response"
	"edu-platform/backend/internal/telemetry"
	telemetrydomain "edu-platform/backend/internal/telemetry/domain"
	telemetryotel "edu-platform/backend/internal/telemetry/otel"
)

// AuthOptions are the optional collaborators of the gate and policy stages.
type AuthOptions struct {
	Logger  *slog.Logger
	Metrics *telemetryotel.GateMetrics
	Events  telemetry.EventEmitter
}

// Authenticate returns the gate stage. It never rejects: a request without a
// verifiable "Bearer " token is forwarded without a principal and left to the
// policy stage. Verification errors and panics are logged at debug.
func Authenticate(verifier security.TokenVerifier, opts AuthOptions) Stage {
	logger := logging.OrDiscard(opts.Logger)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := security.BearerToken(r.Header.Get("Authorization"))
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			claims, err := security.VerifySafely(verifier, token)
			if err != nil {
				reason := security.RejectReason(err)
				logger.DebugContext(ctx, "bearer token rejected", "reason", reason, "error", err)
				opts.Metrics.TokenRejected(ctx, reason)
				telemetry.EmitAsync(opts.Events, &telemetrydomain.AuthEvent{
					Kind:      telemetrydomain.EventTokenRejected,
					Outcome:   telemetrydomain.OutcomeFailure,
					Reason:    reason,
					RequestID: logging.RequestID(ctx),
					Method:    r.Method,
					Path:      r.URL.Path,
				})
				next.ServeHTTP(w, r)
				return
			}
			opts.Metrics.TokenVerified(ctx)
			ctx = reqctx.WithPrincipal(ctx, identitydomain.NewPrincipal(claims.SubjectID, claims.DisplayName))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Authorize returns the policy stage. Public routes pass; a protected route
// without a principal ends with 401, an authorizer refusal with 403.
func Authorize(policy *engine.AccessPolicy, opts AuthOptions) Stage {
	logger := logging.OrDiscard(opts.Logger)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			principal, _ := reqctx.PrincipalFrom(ctx)
			err := policy.Decide(ctx, r.Method, r.URL.Path, principal)
			if err == nil {
				next.ServeHTTP(w, r)
				return
			}
			code, _ := apperr.CodeOf(err)
			opts.Metrics.AccessDenied(ctx, code.Int())
			event := &telemetrydomain.AuthEvent{
				Kind:      telemetrydomain.EventAccessDenied,
				Outcome:   telemetrydomain.OutcomeFailure,
				Reason:    code.Message(),
				RequestID: logging.RequestID(ctx),
				Method:    r.Method,
				Path:      r.URL.Path,
			}
			if principal != nil {
				event.UserID = principal.UserID
				event.Username = principal.Username
			}
			telemetry.EmitAsync(opts.Events, event)
			response.WriteError(ctx, w, logger, err)
		})
	}
}
