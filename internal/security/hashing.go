package security

import (
	"errors"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordBytes is the longest password bcrypt accepts.
const MaxPasswordBytes = 72

// ErrPasswordTooLong is returned by Hash for passwords over MaxPasswordBytes.
// Length validation upstream counts characters, so multibyte input can still hit it.
var ErrPasswordTooLong = errors.New("security: password exceeds 72 bytes")

// Hasher is the bcrypt password collaborator used by registration and login.
// Plaintext passwords are never logged or stored.
type Hasher struct {
	Cost int

	dummyOnce sync.Once
	dummy     []byte
}

// NewHasher returns a Hasher with cost clamped to bcrypt's valid range.
// A non-positive cost selects bcrypt.DefaultCost.
func NewHasher(cost int) *Hasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	cost = max(bcrypt.MinCost, min(cost, bcrypt.MaxCost))
	return &Hasher{Cost: cost}
}

// Hash returns the bcrypt hash of password for storage.
func (h *Hasher) Hash(password string) (string, error) {
	if len(password) > MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Matches reports whether password matches the stored hash. A malformed hash
// never matches. An empty hash is compared against a throwaway hash of the same
// cost, so a login for an unknown account takes as long as a wrong password.
func (h *Hasher) Matches(hash, password string) bool {
	if hash == "" {
		h.dummyOnce.Do(func() {
			h.dummy, _ = bcrypt.GenerateFromPassword([]byte("edu-platform-unknown-account"), h.Cost)
		})
		_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(password))
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
