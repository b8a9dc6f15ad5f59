package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// FingerprintSize is the length of a fingerprint in hex characters.
const FingerprintSize = sha256.Size * 2

// Normalize folds case and trims surrounding whitespace.
func Normalize(description string) string {
	return strings.ToLower(strings.TrimSpace(description))
}

// Fingerprint computes the SHA-256 cache key of a normalized description.
func Fingerprint(description string) string {
	sum := sha256.Sum256([]byte(Normalize(description)))
	return hex.EncodeToString(sum[:])
}
