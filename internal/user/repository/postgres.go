package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"edu-platform/backend/internal/apperr"
	"edu-platform/backend/internal/user/domain"
)

const (
	uniqueViolation       = "23505"
	usernameUniqueKeyName = "users_username_key"
	emailUniqueKeyName    = "users_email_key"

	selectUserColumns = `SELECT id, username, email, password_hash, nickname, status, created_at, updated_at FROM users`
)

// PostgresRepository is the Repository backed by the users table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a user repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.getOne(ctx, "get user by id", selectUserColumns+` WHERE id = $1`, id)
}

// GetByUsername returns the user with the given username, or nil if not found.
func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.getOne(ctx, "get user by username", selectUserColumns+` WHERE username = $1`, username)
}

// GetByEmail returns the user with the given email, or nil if not found.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, "get user by email", selectUserColumns+` WHERE email = $1`, email)
}

// Create inserts u and sets u.ID from the generated key. Unique violations on
// username or email map to ErrDuplicateUsername or ErrDuplicateEmail.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = u.CreatedAt
	}
	const q = `INSERT INTO users (username, email, password_hash, nickname, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id`
	err := r.db.QueryRowContext(ctx, q,
		u.Username, u.Email, u.PasswordHash, u.Nickname, int16(u.Status), u.CreatedAt, u.UpdatedAt,
	).Scan(&u.ID)
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		switch pgErr.ConstraintName {
		case usernameUniqueKeyName:
			return ErrDuplicateUsername
		case emailUniqueKeyName:
			return ErrDuplicateEmail
		}
	}
	return apperr.Persistence("create user", err)
}

func (r *PostgresRepository) getOne(ctx context.Context, op, q string, arg any) (*domain.User, error) {
	var (
		u      domain.User
		status int16
	)
	err := r.db.QueryRowContext(ctx, q, arg).Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Nickname, &status, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperr.Persistence(op, err)
	}
	u.Status = domain.UserStatus(status)
	return &u, nil
}
