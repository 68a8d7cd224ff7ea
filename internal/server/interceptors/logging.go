package interceptors

import (
	"context"
	"log/slog"
	"net"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"edu-platform/backend/internal/logging"
	"edu-platform/backend/internal/server/reqctx"
)

// LoggingUnary logs one line per RPC after it completes. skipMethods is the
// set of full method names to not log (e.g. health checks).
func LoggingUnary(logger *slog.Logger, skipMethods map[string]bool) grpc.UnaryServerInterceptor {
	logger = logging.OrDiscard(logger)
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if skipMethods[info.FullMethod] {
			return resp, err
		}
		logRPC(ctx, logger, info.FullMethod, start, err)
		return resp, err
	}
}

// LoggingStream is the streaming form of LoggingUnary.
func LoggingStream(logger *slog.Logger, skipMethods map[string]bool) grpc.StreamServerInterceptor {
	logger = logging.OrDiscard(logger)
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := handler(srv, ss)
		if !skipMethods[info.FullMethod] {
			logRPC(ss.Context(), logger, info.FullMethod, start, err)
		}
		return err
	}
}

func logRPC(ctx context.Context, logger *slog.Logger, fullMethod string, start time.Time, err error) {
	attrs := []any{
		"rpc", fullMethod,
		"status_code", status.Code(err).String(),
		"duration_ms", time.Since(start).Milliseconds(),
		"client_ip", ClientIP(ctx),
	}
	if uid, ok := reqctx.UserID(ctx); ok {
		attrs = append(attrs, "user_id", uid)
	}
	logger.InfoContext(ctx, "grpc request", attrs...)
}

// ClientIP returns the client IP from gRPC metadata (x-forwarded-for, x-real-ip) or peer, or "unknown".
func ClientIP(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get("x-forwarded-for"); len(vals) > 0 {
			if s := strings.TrimSpace(vals[0]); s != "" {
				if i := strings.Index(s, ","); i > 0 {
					s = strings.TrimSpace(s[:i])
				}
				return s
			}
		}
		if vals := md.Get("x-real-ip"); len(vals) > 0 {
			if s := strings.TrimSpace(vals[0]); s != "" {
				return s
			}
		}
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		if host, _, err := net.SplitHostPort(p.Addr.String()); err == nil {
			return host
		}
		return p.Addr.String()
	}
	return "unknown"
}
