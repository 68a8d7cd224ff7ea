package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"edu-platform/backend/internal/config"
	"edu-platform/backend/internal/db"
	healthhandler "edu-platform/backend/internal/health/handler"
	identityhandler "edu-platform/backend/internal/identity/handler"
	identityservice "edu-platform/backend/internal/identity/service"
	"edu-platform/backend/internal/logging"
	policydomain "edu-platform/backend/internal/policy/domain"
	"edu-platform/backend/internal/policy/engine"
	"edu-platform/backend/internal/security"
	"edu-platform/backend/internal/server"
	"edu-platform/backend/internal/server/middleware"
	"edu-platform/backend/internal/telemetry"
	telemetryotel "edu-platform/backend/internal/telemetry/otel"
	userrepo "edu-platform/backend/internal/user/repository"
)

const serviceName = "edu-platform-backend"

const (
	healthSyncInterval    = 15 * time.Second
	telemetryFlushTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	if err != nil {
		log.Fatalf("logging: %v", err)
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	providers, err := telemetryotel.NewProviders(ctx, cfg.OTelEndpoint, serviceName, cfg.Env, cfg.OTelInsecure)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	providers.SetGlobal()
	defer flushTelemetry(logger, providers.Shutdown, telemetryFlushTimeout)
	metrics, err := telemetryotel.NewGateMetrics(providers.MeterProvider)
	if err != nil {
		return fmt.Errorf("telemetry metrics: %w", err)
	}
	events := telemetryotel.NewEventEmitter(providers.LoggerProvider)

	key, err := cfg.SigningKey()
	if err != nil {
		return err
	}
	codec, err := security.NewTokenCodec(key, cfg.TokenTTL())
	if err != nil {
		return fmt.Errorf("token codec: %w", err)
	}

	users, database, err := openUserStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if database != nil {
		defer database.Close()
	}

	policy, rego, err := buildPolicy(ctx, cfg)
	if err != nil {
		return err
	}

	var (
		pinger      healthhandler.Pinger
		regoChecker healthhandler.PolicyChecker
	)
	if database != nil {
		pinger = database
	}
	if rego != nil {
		regoChecker = rego
	}
	checker := healthhandler.NewChecker(pinger, regoChecker)

	authSvc := identityservice.NewAuthService(users, security.NewHasher(cfg.BcryptCost), codec, events)
	httpSrv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: server.NewHTTPHandler(server.HTTPDeps{
			Logger:   logger,
			Verifier: codec,
			Policy:   policy,
			Metrics:  metrics,
			Events:   events,
			CORS: middleware.CORSConfig{
				AllowedOrigins: cfg.CORSOrigins(),
				AllowedMethods: cfg.CORSMethods(),
				AllowedHeaders: cfg.CORSHeaders(),
			},
			MaxBodyBytes: cfg.MaxBodyBytes,
			Auth:         identityhandler.New(authSvc, logger),
			Health:       checker,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	serve := func(name string, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				mu.Unlock()
				cancel()
			}
		}()
	}

	serve("http", func() error { return server.ServeHTTP(ctx, httpSrv, logger) })
	if cfg.GRPCAddr != "" {
		grpcSrv, hs := server.NewGRPCServer(server.GRPCDeps{
			Logger:   logger,
			Verifier: codec,
			Policy:   policy,
			Metrics:  metrics,
			Events:   events,
		})
		go checker.WatchGRPC(ctx, hs, healthSyncInterval)
		serve("grpc", func() error { return server.ServeGRPC(ctx, grpcSrv, cfg.GRPCAddr, logger) })
	}

	wg.Wait()
	return errors.Join(errs...)
}

// openUserStore connects to Postgres when DATABASE_URL is set, otherwise
// falls back to the in-memory store. The returned *sql.DB is nil for the latter.
func openUserStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (userrepo.Repository, *sql.DB, error) {
	if cfg.DatabaseURL == "" {
		if cfg.IsProduction() {
			return nil, nil, errors.New("DATABASE_URL is required in production")
		}
		logger.Warn("DATABASE_URL not set; using in-memory user store")
		return userrepo.NewMemoryRepository(), nil, nil
	}
	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("database: %w", err)
	}
	return userrepo.NewPostgresRepository(database), database, nil
}

// buildPolicy assembles the route table from the built-in rules plus any
// configured entries, and loads the optional Rego authorizer.
func buildPolicy(ctx context.Context, cfg *config.Config) (*engine.AccessPolicy, *engine.RegoAuthorizer, error) {
	public, err := policydomain.ParseRules(cfg.PublicRouteList(), policydomain.RequirementPublic)
	if err != nil {
		return nil, nil, fmt.Errorf("PUBLIC_ROUTES: %w", err)
	}
	authenticated, err := policydomain.ParseRules(cfg.AuthenticatedRouteList(), policydomain.RequirementAuthenticated)
	if err != nil {
		return nil, nil, fmt.Errorf("AUTHENTICATED_ROUTES: %w", err)
	}
	rules := policydomain.DefaultPublicRules()
	rules = append(rules, public...)
	rules = append(rules, policydomain.DefaultAuthenticatedRules()...)
	rules = append(rules, authenticated...)
	table, err := engine.NewRouteTable(rules)
	if err != nil {
		return nil, nil, fmt.Errorf("route table: %w", err)
	}

	if cfg.AccessPolicyRegoFile == "" {
		return engine.NewAccessPolicy(table, nil), nil, nil
	}
	rego, err := engine.LoadRegoAuthorizer(ctx, cfg.AccessPolicyRegoFile)
	if err != nil {
		return nil, nil, fmt.Errorf("access policy: %w", err)
	}
	return engine.NewAccessPolicy(table, rego), rego, nil
}

// flushTelemetry waits for in-flight auth events, then shuts the providers down.
// Failures are logged; shutdown proceeds regardless.
func flushTelemetry(logger *slog.Logger, shutdown func(context.Context) error, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := telemetry.Drain(ctx); err != nil {
		logger.Warn("telemetry: pending events dropped", "error", err)
	}
	if err := shutdown(ctx); err != nil {
		logger.Warn("telemetry: provider shutdown", "error", err)
	}
}
