package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// MinJWTSecretBytes is the shortest HMAC key we accept for access tokens
const MinJWTSecretBytes = 32

// GenerateSecret returns n cryptographically random bytes, hex encoded
func GenerateSecret(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("secret length must be positive, got %d", n)
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// GenerateJWTSecret returns an HMAC key for the admin access token verifier
func GenerateJWTSecret(n int) (string, error) {
	if n < MinJWTSecretBytes {
		return "", fmt.Errorf("JWT secret must be at least %d bytes, got %d", MinJWTSecretBytes, n)
	}
	return GenerateSecret(n)
}
