// Package db opens the Postgres pool backing the user store and embeds its schema.
package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// ErrEmptyDSN is returned by Open when no DSN is configured.
var ErrEmptyDSN = errors.New("db: DATABASE_URL is empty")

const pingTimeout = 5 * time.Second

type poolConfig struct {
	maxOpen     int
	maxIdle     int
	maxLifetime time.Duration
}

// Option tunes the connection pool.
type Option func(*poolConfig)

// WithMaxOpenConns caps open connections. Values <= 0 are ignored.
func WithMaxOpenConns(n int) Option {
	return func(c *poolConfig) {
		if n > 0 {
			c.maxOpen = n
		}
	}
}

// WithMaxIdleConns caps idle connections. Values < 0 are ignored.
func WithMaxIdleConns(n int) Option {
	return func(c *poolConfig) {
		if n >= 0 {
			c.maxIdle = n
		}
	}
}

// WithConnMaxLifetime recycles connections older than d. Values <= 0 are ignored.
func WithConnMaxLifetime(d time.Duration) Option {
	return func(c *poolConfig) {
		if d > 0 {
			c.maxLifetime = d
		}
	}
}

// Open opens a pgx-backed pool for dsn and verifies it with a ping. Caller must Close it.
func Open(ctx context.Context, dsn string, opts ...Option) (*sql.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, ErrEmptyDSN
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	configure(db, opts...)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// configure applies pool limits, login traffic being short queries on a small table.
func configure(db *sql.DB, opts ...Option) {
	cfg := poolConfig{maxOpen: 20, maxIdle: 5, maxLifetime: 30 * time.Minute}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.maxIdle > cfg.maxOpen {
		cfg.maxIdle = cfg.maxOpen
	}
	db.SetMaxOpenConns(cfg.maxOpen)
	db.SetMaxIdleConns(cfg.maxIdle)
	db.SetConnMaxLifetime(cfg.maxLifetime)
}
