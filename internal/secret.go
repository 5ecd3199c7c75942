package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
)

// DefaultSecretSize is the HS256 key length used when none is configured.
const DefaultSecretSize = 32

// NewSecret returns size random bytes.
func NewSecret(size int) ([]byte, error) {
	if size <= 0 {
		return nil, errors.New("secret size must be positive")
	}
	secret := make([]byte, size)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}
	return secret, nil
}

// EncodeSecret renders a secret as base64url without padding.
func EncodeSecret(secret []byte) string {
	return base64.RawURLEncoding.EncodeToString(secret)
}

// DecodeSecret parses the output of EncodeSecret.
func DecodeSecret(encoded string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(encoded)
}

// TokenFingerprint is a short, stable, non-reversible tag for a bearer token, safe
// to put in logs.
func TokenFingerprint(token string) string {
	if token == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:6])
}
