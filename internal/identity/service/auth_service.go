// Package service implements the identity flows on top of the token codec and
// the user store: login, registration, token refresh and current-user lookup.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"edu-platform/backend/internal/apperr"
	"edu-platform/backend/internal/logging"
	"edu-platform/backend/internal/security"
	"edu-platform/backend/internal/telemetry"
	telemetrydomain "edu-platform/backend/internal/telemetry/domain"
	userdomain "edu-platform/backend/internal/user/domain"
	userrepo "edu-platform/backend/internal/user/repository"
)

// TokenIssuer issues and refreshes session tokens. *security.TokenCodec implements it.
type TokenIssuer interface {
	Issue(subjectID int64, displayName string) (string, time.Time, error)
	Refresh(token string) (string, time.Time, error)
}

// PasswordHasher hashes and checks passwords. *security.Hasher implements it.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Matches(hash, password string) bool
}

// Session is the outcome of Login, Register and Refresh.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      *userdomain.User
}

// RegisterInput holds the fields of a new account.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	Nickname string
}

// AuthService implements the identity flows.
type AuthService struct {
	users  userrepo.Repository
	hasher PasswordHasher
	tokens TokenIssuer
	events telemetry.EventEmitter
	now    func() time.Time
}

// NewAuthService returns an AuthService. events may be nil.
func NewAuthService(users userrepo.Repository, hasher PasswordHasher, tokens TokenIssuer, events telemetry.EventEmitter) *AuthService {
	return &AuthService{users: users, hasher: hasher, tokens: tokens, events: events, now: time.Now}
}

// Login authenticates by username, or by email when login contains '@'.
// Unknown users and wrong passwords both fail with InvalidCredentials.
func (s *AuthService) Login(ctx context.Context, login, password string) (*Session, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, s.loginFailed(ctx, login, apperr.New(apperr.InvalidCredentials))
	}
	var (
		u   *userdomain.User
		err error
	)
	if strings.Contains(login, "@") {
		u, err = s.users.GetByEmail(ctx, strings.ToLower(login))
	} else {
		u, err = s.users.GetByUsername(ctx, login)
	}
	if err != nil {
		return nil, err
	}
	if u == nil {
		s.hasher.Matches("", password)
		return nil, s.loginFailed(ctx, login, apperr.New(apperr.InvalidCredentials))
	}
	if !s.hasher.Matches(u.PasswordHash, password) {
		return nil, s.loginFailed(ctx, login, apperr.New(apperr.InvalidCredentials))
	}
	if !u.Active() {
		return nil, s.loginFailed(ctx, login, apperr.New(apperr.AccountDisabled))
	}
	sess, err := s.issue(u)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, telemetrydomain.EventLogin, telemetrydomain.OutcomeSuccess, u.ID, u.Username, "")
	return sess, nil
}

// Register creates an active account and signs it in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	hash, err := s.hasher.Hash(in.Password)
	if errors.Is(err, security.ErrPasswordTooLong) {
		return nil, apperr.Newf(apperr.ValidationFailed, "Password must be at most %d bytes", security.MaxPasswordBytes)
	}
	if err != nil {
		return nil, err
	}
	nickname := strings.TrimSpace(in.Nickname)
	if nickname == "" {
		nickname = username
	}
	now := s.now().UTC()
	u := &userdomain.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Nickname:     nickname,
		Status:       userdomain.UserStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := u.Validate(); err != nil {
		return nil, apperr.Newf(apperr.ValidationFailed, "%v", err)
	}
	if err := s.users.Create(ctx, u); err != nil {
		coded := duplicateError(err)
		if coded == nil {
			return nil, err
		}
		s.emit(ctx, telemetrydomain.EventRegister, telemetrydomain.OutcomeFailure, 0, username, coded.Message)
		return nil, coded
	}
	sess, err := s.issue(u)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, telemetrydomain.EventRegister, telemetrydomain.OutcomeSuccess, u.ID, u.Username, "")
	return sess, nil
}

// Refresh exchanges a verifiable token for a new one with a fresh expiry.
// An expired token fails with TokenExpired; any other failure with TokenInvalid.
func (s *AuthService) Refresh(ctx context.Context, token string) (*Session, error) {
	next, expiresAt, err := s.tokens.Refresh(token)
	if err != nil {
		code := apperr.TokenInvalid
		if errors.Is(err, security.ErrTokenExpired) {
			code = apperr.TokenExpired
		}
		if !errors.Is(err, security.ErrInvalidToken) {
			return nil, err
		}
		s.emit(ctx, telemetrydomain.EventRefresh, telemetrydomain.OutcomeFailure, 0, "", security.RejectReason(err))
		return nil, apperr.New(code).WithCause(err)
	}
	s.emit(ctx, telemetrydomain.EventRefresh, telemetrydomain.OutcomeSuccess, 0, "", "")
	return &Session{Token: next, ExpiresAt: expiresAt}, nil
}

// Me loads the account of the authenticated user.
func (s *AuthService) Me(ctx context.Context, userID int64) (*userdomain.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperr.New(apperr.UserNotFound)
	}
	return u, nil
}

func (s *AuthService) issue(u *userdomain.User) (*Session, error) {
	token, expiresAt, err := s.tokens.Issue(u.ID, u.Username)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: expiresAt, User: u}, nil
}

func (s *AuthService) loginFailed(ctx context.Context, login string, err *apperr.Error) error {
	s.emit(ctx, telemetrydomain.EventLogin, telemetrydomain.OutcomeFailure, 0, login, err.Message)
	return err
}

// duplicateError maps a unique-key failure from the store to its catalog error, or nil.
func duplicateError(err error) *apperr.Error {
	switch {
	case errors.Is(err, userrepo.ErrDuplicateUsername):
		return apperr.New(apperr.UsernameTaken)
	case errors.Is(err, userrepo.ErrDuplicateEmail):
		return apperr.New(apperr.EmailTaken)
	}
	return nil
}

func (s *AuthService) emit(ctx context.Context, kind telemetrydomain.AuthEventKind, outcome string, userID int64, username, reason string) {
	telemetry.EmitAsync(s.events, &telemetrydomain.AuthEvent{
		Kind:       kind,
		Outcome:    outcome,
		UserID:     userID,
		Username:   username,
		Reason:     reason,
		RequestID:  logging.RequestID(ctx),
		OccurredAt: s.now().UTC(),
	})
}
