package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"edu-platform/backend/internal/user/domain"
)

// MemoryRepository is an in-process user store for development and tests.
// Username and email uniqueness is case-sensitive, matching the Postgres constraints.
type MemoryRepository struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]*domain.User
}

// NewMemoryRepository returns an empty in-memory user store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[int64]*domain.User)}
}

// GetByID returns a copy of the user for id, or nil if not found.
func (r *MemoryRepository) GetByID(_ context.Context, id int64) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if u, ok := r.byID[id]; ok {
		return copyUser(u), nil
	}
	return nil, nil
}

// GetByUsername returns a copy of the user with username, or nil if not found.
func (r *MemoryRepository) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.Username == username }), nil
}

// GetByEmail returns a copy of the user with email, or nil if not found.
func (r *MemoryRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.Email == email }), nil
}

// Create stores a copy of u and assigns u.ID. Duplicates fail like the Postgres store.
func (r *MemoryRepository) Create(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byID {
		if existing.Username == u.Username {
			return ErrDuplicateUsername
		}
		if strings.TrimSpace(u.Email) != "" && existing.Email == u.Email {
			return ErrDuplicateEmail
		}
	}
	r.nextID++
	u.ID = r.nextID
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = u.CreatedAt
	}
	r.byID[u.ID] = copyUser(u)
	return nil
}

func (r *MemoryRepository) find(match func(*domain.User) bool) *domain.User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.byID {
		if match(u) {
			return copyUser(u)
		}
	}
	return nil
}

func copyUser(u *domain.User) *domain.User {
	c := *u
	return &c
}
