package security

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// MinSigningKeyBits is the minimum HMAC key size for HS512.
const MinSigningKeyBits = 512

// base64Prefix marks a configured secret as standard base64 instead of raw text.
const base64Prefix = "base64:"

// ErrWeakSigningKey is returned when the signing key is shorter than MinSigningKeyBits.
var ErrWeakSigningKey = errors.New("signing key shorter than 512 bits")

// CheckSigningKey returns ErrWeakSigningKey unless key carries at least
// MinSigningKeyBits of material. The key is never padded or truncated.
func CheckSigningKey(key []byte) error {
	if len(key)*8 < MinSigningKeyBits {
		return fmt.Errorf("%w: got %d bits", ErrWeakSigningKey, len(key)*8)
	}
	return nil
}

// DecodeSigningSecret converts the configured secret into key bytes.
// A "base64:" prefix selects standard base64 decoding; otherwise the UTF-8
// bytes of s are used as-is. Surrounding whitespace is ignored.
func DecodeSigningSecret(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: secret is empty", ErrWeakSigningKey)
	}
	if !strings.HasPrefix(s, base64Prefix) {
		return []byte(s), nil
	}
	key, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(s, base64Prefix))
	if err != nil {
		return nil, fmt.Errorf("decode base64 signing secret: %w", err)
	}
	return key, nil
}

// SigningKeyFromSecret decodes s and checks its strength.
func SigningKeyFromSecret(s string) ([]byte, error) {
	key, err := DecodeSigningSecret(s)
	if err != nil {
		return nil, err
	}
	if err := CheckSigningKey(key); err != nil {
		return nil, err
	}
	return key, nil
}
