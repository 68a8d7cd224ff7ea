package repository

import (
	"context"
	"errors"

	"edu-platform/backend/internal/user/domain"
)

var (
	// ErrDuplicateUsername is returned by Create when the username is already registered.
	ErrDuplicateUsername = errors.New("username already exists")
	// ErrDuplicateEmail is returned by Create when the email is already registered.
	ErrDuplicateEmail = errors.New("email already exists")
)

// Repository defines persistence for users. Lookups return nil, nil when no row matches.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// Create persists u and assigns u.ID.
	Create(ctx context.Context, u *domain.User) error
}
