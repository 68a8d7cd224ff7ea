package security

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTokenTTL is the session token lifetime used when none is configured.
const DefaultTokenTTL = 86400 * time.Second

var (
	// ErrInvalidToken is returned when a token is empty, malformed, forged, or expired.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired is returned by Verify for a correctly signed token past its expiry.
	// errors.Is(ErrTokenExpired, ErrInvalidToken) holds.
	ErrTokenExpired = fmt.Errorf("%w: expired", ErrInvalidToken)
)

var signingMethod = jwt.SigningMethodHS512

// SessionClaims is the JWT payload of a session token.
type SessionClaims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
}

// TokenClaims is the verified content of a session token.
type TokenClaims struct {
	SubjectID   int64
	DisplayName string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// TokenCodec issues and verifies self-contained HS512 session tokens.
// It holds no mutable state after construction and is safe for concurrent use.
type TokenCodec struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// CodecOption customizes a TokenCodec.
type CodecOption func(*TokenCodec)

// WithClock overrides the time source used for iat/exp and expiry checks.
func WithClock(now func() time.Time) CodecOption {
	return func(c *TokenCodec) {
		if now != nil {
			c.now = now
		}
	}
}

// NewTokenCodec returns a codec signing with key. The key must carry at least
// MinSigningKeyBits of material; an undersized key returns ErrWeakSigningKey.
// A non-positive ttl selects DefaultTokenTTL.
func NewTokenCodec(key []byte, ttl time.Duration, opts ...CodecOption) (*TokenCodec, error) {
	if err := CheckSigningKey(key); err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	c := &TokenCodec{
		key: append([]byte(nil), key...),
		ttl: ttl,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// TTL returns the configured token lifetime.
func (c *TokenCodec) TTL() time.Duration { return c.ttl }

// Issue signs a new token for subjectID with the given display name.
// Returns the token and its expiry.
func (c *TokenCodec) Issue(subjectID int64, displayName string) (string, time.Time, error) {
	if err := CheckSigningKey(c.key); err != nil {
		return "", time.Time{}, err
	}
	now := c.now().UTC().Truncate(time.Second)
	expiresAt := now.Add(c.ttl)
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(subjectID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Username: displayName,
	}
	token, err := jwt.NewWithClaims(signingMethod, claims).SignedString(c.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return token, expiresAt, nil
}

// Verify checks structure and signature, then expiry, and returns the claims.
// Every failure wraps ErrInvalidToken.
func (c *TokenCodec) Verify(token string) (*TokenClaims, error) {
	claims, err := c.parse(token)
	if err != nil {
		return nil, err
	}
	if !c.now().Before(claims.ExpiresAt) {
		return nil, ErrTokenExpired
	}
	return claims, nil
}

// IsExpired reports whether token is past its expiry. Any token that cannot
// be parsed and verified counts as expired.
func (c *TokenCodec) IsExpired(token string) bool {
	claims, err := c.parse(token)
	if err != nil {
		return true
	}
	return !c.now().Before(claims.ExpiresAt)
}

// Refresh verifies token and issues a replacement for the same subject and
// display name with a fresh expiry. It never extends a token that fails Verify.
func (c *TokenCodec) Refresh(token string) (string, time.Time, error) {
	claims, err := c.Verify(token)
	if err != nil {
		return "", time.Time{}, err
	}
	return c.Issue(claims.SubjectID, claims.DisplayName)
}

// parse validates structure, algorithm and signature without looking at exp.
func (c *TokenCodec) parse(token string) (*TokenClaims, error) {
	if token == "" || strings.Count(token, ".") != 2 {
		return nil, ErrInvalidToken
	}
	if len(c.key) == 0 {
		return nil, ErrInvalidToken
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	parsed, err := parser.ParseWithClaims(token, &SessionClaims{}, func(*jwt.Token) (interface{}, error) {
		return c.key, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	sc, ok := parsed.Claims.(*SessionClaims)
	if !ok || sc.ExpiresAt == nil {
		return nil, ErrInvalidToken
	}
	subjectID, err := strconv.ParseInt(sc.Subject, 10, 64)
	if err != nil {
		return nil, ErrInvalidToken
	}
	out := &TokenClaims{
		SubjectID:   subjectID,
		DisplayName: sc.Username,
		ExpiresAt:   sc.ExpiresAt.Time,
	}
	if sc.IssuedAt != nil {
		out.IssuedAt = sc.IssuedAt.Time
	}
	return out, nil
}
