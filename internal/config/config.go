// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"edu-platform/backend/internal/security"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP API listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// GRPCAddr is the optional gRPC listen address; empty disables the gRPC surface.
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// DatabaseURL is the Postgres DSN; empty selects the in-memory user store.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// JWTSecret is the HS512 signing secret. Raw text, or "base64:" followed by standard base64.
	// Must decode to at least 64 bytes.
	JWTSecret string `mapstructure:"JWT_SECRET"`
	// JWTTTLSeconds is the session token lifetime in seconds; default 86400.
	JWTTTLSeconds int `mapstructure:"JWT_TTL_SECONDS"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// CORSAllowedOrigins, CORSAllowedMethods and CORSAllowedHeaders are comma-separated lists.
	CORSAllowedOrigins string `mapstructure:"CORS_ALLOWED_ORIGINS"`
	CORSAllowedMethods string `mapstructure:"CORS_ALLOWED_METHODS"`
	CORSAllowedHeaders string `mapstructure:"CORS_ALLOWED_HEADERS"`

	// PublicRoutes adds comma-separated public entries, each "pattern" or "METHOD pattern".
	PublicRoutes string `mapstructure:"PUBLIC_ROUTES"`
	// AuthenticatedRoutes adds comma-separated entries that always require a principal.
	AuthenticatedRoutes string `mapstructure:"AUTHENTICATED_ROUTES"`
	// AccessPolicyRegoFile is an optional path to a Rego module defining data.edu.access.allow.
	AccessPolicyRegoFile string `mapstructure:"ACCESS_POLICY_REGO_FILE"`

	// MaxBodyBytes caps request bodies, uploads included.
	MaxBodyBytes int64 `mapstructure:"MAX_BODY_BYTES"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"LOG_LEVEL"`
	// LogFormat is json or text.
	LogFormat string `mapstructure:"LOG_FORMAT"`

	// OTelEndpoint is the OTLP gRPC endpoint; empty disables export.
	OTelEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTelInsecure disables TLS for the OTLP connection.
	OTelInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`

	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("GRPC_ADDR", "")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_TTL_SECONDS", 86400)
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("CORS_ALLOWED_METHODS", "GET,POST,PUT,DELETE,OPTIONS")
	v.SetDefault("CORS_ALLOWED_HEADERS", "Authorization,Content-Type")
	v.SetDefault("PUBLIC_ROUTES", "")
	v.SetDefault("AUTHENTICATED_ROUTES", "")
	v.SetDefault("ACCESS_POLICY_REGO_FILE", "")
	v.SetDefault("MAX_BODY_BYTES", 10<<20)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if _, err := security.SigningKeyFromSecret(cfg.JWTSecret); err != nil {
		return nil, fmt.Errorf("config: JWT_SECRET: %w", err)
	}
	if cfg.JWTTTLSeconds <= 0 {
		return nil, errors.New("config: JWT_TTL_SECONDS must be positive")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}

	if cfg.MaxBodyBytes <= 0 {
		return nil, errors.New("config: MAX_BODY_BYTES must be positive")
	}

	switch strings.ToLower(cfg.LogFormat) {
	case "json", "text":
	default:
		return nil, fmt.Errorf("config: LOG_FORMAT must be json or text, got %q", cfg.LogFormat)
	}

	return &cfg, nil
}

// LoadDatabaseURL returns DATABASE_URL from the environment or .env without
// validating the rest of the config. cmd/migrate uses it so migrations do not
// need a signing secret.
func LoadDatabaseURL() string {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig()
	v.AutomaticEnv()
	return strings.TrimSpace(v.GetString("DATABASE_URL"))
}

// TokenTTL returns JWTTTLSeconds as a duration.
func (c *Config) TokenTTL() time.Duration {
	if c.JWTTTLSeconds <= 0 {
		return security.DefaultTokenTTL
	}
	return time.Duration(c.JWTTTLSeconds) * time.Second
}

// SigningKey decodes JWTSecret into key bytes.
func (c *Config) SigningKey() ([]byte, error) {
	return security.SigningKeyFromSecret(c.JWTSecret)
}

// CORSOrigins returns the allowed CORS origins.
func (c *Config) CORSOrigins() []string { return splitList(c.CORSAllowedOrigins) }

// CORSMethods returns the allowed CORS methods, upper-cased.
func (c *Config) CORSMethods() []string {
	out := splitList(c.CORSAllowedMethods)
	for i := range out {
		out[i] = strings.ToUpper(out[i])
	}
	return out
}

// CORSHeaders returns the allowed CORS request headers.
func (c *Config) CORSHeaders() []string { return splitList(c.CORSAllowedHeaders) }

// PublicRouteList returns the extra public route entries.
func (c *Config) PublicRouteList() []string { return splitList(c.PublicRoutes) }

// AuthenticatedRouteList returns the explicit authenticated route entries.
func (c *Config) AuthenticatedRouteList() []string { return splitList(c.AuthenticatedRoutes) }

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
