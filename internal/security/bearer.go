package security

import (
	"errors"
	"fmt"
	"strings"
)

// BearerPrefix is the case-sensitive scheme prefix of an Authorization header.
const BearerPrefix = "Bearer "

// TokenVerifier verifies a session token. *TokenCodec implements it.
type TokenVerifier interface {
	Verify(token string) (*TokenClaims, error)
}

// BearerToken returns the remainder of header after "Bearer " and true, or
// "", false when the header does not carry the prefix. The remainder is not
// trimmed or checked; an empty remainder is still returned with true.
func BearerToken(header string) (string, bool) {
	if !strings.HasPrefix(header, BearerPrefix) {
		return "", false
	}
	return header[len(BearerPrefix):], true
}

// VerifySafely calls v.Verify, converting a panic into an ErrInvalidToken error.
func VerifySafely(v TokenVerifier, token string) (claims *TokenClaims, err error) {
	defer func() {
		if r := recover(); r != nil {
			claims, err = nil, fmt.Errorf("%w: verifier panic: %v", ErrInvalidToken, r)
		}
	}()
	if v == nil {
		return nil, fmt.Errorf("%w: no verifier", ErrInvalidToken)
	}
	return v.Verify(token)
}

// RejectReason labels a verification failure for logs and metrics.
func RejectReason(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrTokenExpired) {
		return "expired"
	}
	return "invalid"
}
