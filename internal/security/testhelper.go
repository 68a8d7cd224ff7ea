package security

import "time"

// TestSigningSecret is a 64-byte secret for unit tests only. Do not use in production.
const TestSigningSecret = "test-signing-secret-0123456789-abcdefghijklmnopqrstuvwxyz-ABCDEF"

// NewTestTokenCodec returns a TokenCodec keyed with TestSigningSecret and the
// default TTL. Extra options (e.g. WithClock) are applied in order.
// For unit tests only.
func NewTestTokenCodec(opts ...CodecOption) (*TokenCodec, error) {
	return NewTokenCodec([]byte(TestSigningSecret), DefaultTokenTTL, opts...)
}

// FixedClock returns a clock function that always reports t.
func FixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
