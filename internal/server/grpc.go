package server

import (
	"context"
	"log/slog"
	"net"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"edu-platform/backend/internal/logging"
	"edu-platform/backend/internal/policy/engine"
	"edu-platform/backend/internal/security"
	"edu-platform/backend/internal/server/interceptors"
	"edu-platform/backend/internal/telemetry"
	telemetryotel "edu-platform/backend/internal/telemetry/otel"
)

// GRPCDeps holds what the gRPC surface is built from.
type GRPCDeps struct {
	Logger   *slog.Logger
	Verifier security.TokenVerifier
	Policy   *engine.AccessPolicy
	Metrics  *telemetryotel.GateMetrics
	Events   telemetry.EventEmitter
}

// healthMethods are not access-logged.
var healthMethods = map[string]bool{
	healthpb.Health_Check_FullMethodName: true,
	healthpb.Health_Watch_FullMethodName: true,
}

// NewGRPCServer returns a server with otelgrpc stats, the logging, gate and
// policy interceptors, and the standard health service registered.
func NewGRPCServer(deps GRPCDeps) (*grpc.Server, *health.Server) {
	opts := interceptors.Options{Logger: deps.Logger, Metrics: deps.Metrics, Events: deps.Events}
	s := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			interceptors.LoggingUnary(deps.Logger, healthMethods),
			interceptors.AuthenticateUnary(deps.Verifier, opts),
			interceptors.AuthorizeUnary(deps.Policy, opts),
		),
		grpc.ChainStreamInterceptor(
			interceptors.LoggingStream(deps.Logger, healthMethods),
			interceptors.AuthenticateStream(deps.Verifier, opts),
			interceptors.AuthorizeStream(deps.Policy, opts),
		),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	return s, hs
}

// ServeGRPC serves on addr until ctx is done, then stops gracefully.
func ServeGRPC(ctx context.Context, srv *grpc.Server, addr string, logger *slog.Logger) error {
	logger = logging.OrDiscard(logger)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		logger.Info("shutting down grpc server")
		srv.GracefulStop()
	}()
	logger.Info("grpc server listening", "addr", addr)
	return srv.Serve(lis)
}
