package utils // package utils provides helpers for opaque token generation and hashing

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

// NewOpaqueToken returns a hex-encoded string built from n bytes of
// cryptographically secure random data.  Password reset and email
// verification links carry these tokens.
func NewOpaqueToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// HashToken returns the SHA-256 hex digest of raw.  Only the digest is used
// as a cache key, so a leaked cache dump cannot be replayed as links.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
