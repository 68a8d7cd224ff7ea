package domain

import (
	"errors"
	"time"
)

// User is the minimal account record the auth core needs.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	Nickname     string
	Status       UserStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserStatus is stored as a SMALLINT.
type UserStatus int16

const (
	UserStatusDisabled UserStatus = 0
	UserStatusActive   UserStatus = 1
)

// Active reports whether the account may sign in.
func (u *User) Active() bool { return u.Status == UserStatusActive }

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.Username == "" {
		return errors.New("username is required")
	}
	if u.Email == "" {
		return errors.New("email is required")
	}
	if u.PasswordHash == "" {
		return errors.New("password hash is required")
	}
	return nil
}
