// Package interceptors applies the authentication gate and access policy to
// gRPC calls, mirroring the HTTP middleware.
package interceptors

import (
	"context"
	"log/slog"
	"net/http"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"edu-platform/backend/internal/apperr"
	identitydomain "edu-platform/backend/internal/identity/domain"
	"edu-platform/backend/internal/logging"
	"edu-platform/backend/internal/policy/engine"
	"edu-platform/backend/internal/security"
	"edu-platform/backend/internal/server/reqctx"
	"edu-platform/backend/internal/telemetry"
	telemetrydomain "edu-platform/backend/internal/telemetry/domain"
	telemetryotel "edu-platform/backend/internal/telemetry/otel"
)

// rpcMethod is the method every gRPC call is classified under; route rules
// match the full method name as the path.
const rpcMethod = http.MethodPost

// Options are the optional collaborators of the interceptors.
type Options struct {
	Logger  *slog.Logger
	Metrics *telemetryotel.GateMetrics
	Events  telemetry.EventEmitter
}

// AuthenticateUnary attaches a principal for a verifiable Bearer token in the
// "authorization" metadata. It never fails the call.
func AuthenticateUnary(verifier security.TokenVerifier, opts Options) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		return handler(authenticate(ctx, info.FullMethod, verifier, opts), req)
	}
}

// AuthenticateStream is the streaming form of AuthenticateUnary.
func AuthenticateStream(verifier security.TokenVerifier, opts Options) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx := authenticate(ss.Context(), info.FullMethod, verifier, opts)
		return handler(srv, &contextStream{ServerStream: ss, ctx: ctx})
	}
}

// AuthorizeUnary enforces the access policy. A missing principal on a
// protected method fails with Unauthenticated, a refusal with PermissionDenied.
func AuthorizeUnary(policy *engine.AccessPolicy, opts Options) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if err := authorize(ctx, info.FullMethod, policy, opts); err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// AuthorizeStream is the streaming form of AuthorizeUnary.
func AuthorizeStream(policy *engine.AccessPolicy, opts Options) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if err := authorize(ss.Context(), info.FullMethod, policy, opts); err != nil {
			return err
		}
		return handler(srv, ss)
	}
}

func authenticate(ctx context.Context, fullMethod string, verifier security.TokenVerifier, opts Options) context.Context {
	token, ok := security.BearerToken(authorizationHeader(ctx))
	if !ok {
		return ctx
	}
	claims, err := security.VerifySafely(verifier, token)
	if err != nil {
		reason := security.RejectReason(err)
		logging.OrDiscard(opts.Logger).DebugContext(ctx, "bearer token rejected", "reason", reason, "method", fullMethod, "error", err)
		opts.Metrics.TokenRejected(ctx, reason)
		telemetry.EmitAsync(opts.Events, &telemetrydomain.AuthEvent{
			Kind:    telemetrydomain.EventTokenRejected,
			Outcome: telemetrydomain.OutcomeFailure,
			Reason:  reason,
			Method:  rpcMethod,
			Path:    fullMethod,
		})
		return ctx
	}
	opts.Metrics.TokenVerified(ctx)
	return reqctx.WithPrincipal(ctx, identitydomain.NewPrincipal(claims.SubjectID, claims.DisplayName))
}

func authorize(ctx context.Context, fullMethod string, policy *engine.AccessPolicy, opts Options) error {
	principal, _ := reqctx.PrincipalFrom(ctx)
	err := policy.Decide(ctx, rpcMethod, fullMethod, principal)
	if err == nil {
		return nil
	}
	code, _ := apperr.CodeOf(err)
	opts.Metrics.AccessDenied(ctx, code.Int())
	logging.OrDiscard(opts.Logger).WarnContext(ctx, "rpc rejected", "method", fullMethod, "code", code.Int(), "error", err)
	event := &telemetrydomain.AuthEvent{
		Kind:    telemetrydomain.EventAccessDenied,
		Outcome: telemetrydomain.OutcomeFailure,
		Reason:  code.Message(),
		Method:  rpcMethod,
		Path:    fullMethod,
	}
	if principal != nil {
		event.UserID = principal.UserID
		event.Username = principal.Username
	}
	telemetry.EmitAsync(opts.Events, event)
	return toStatus(code)
}

func toStatus(code apperr.Code) error {
	switch code {
	case apperr.Unauthorized:
		return status.Error(codes.Unauthenticated, code.Message())
	case apperr.Forbidden:
		return status.Error(codes.PermissionDenied, code.Message())
	default:
		return status.Error(codes.Internal, apperr.InternalError.Message())
	}
}

// authorizationHeader returns the first "authorization" metadata value, or "".
func authorizationHeader(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	vals := md.Get("authorization")
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}

type contextStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *contextStream) Context() context.Context { return s.ctx }
