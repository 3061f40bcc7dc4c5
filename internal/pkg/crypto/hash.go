// Package crypto provides cryptographic utilities for the auth service.
package crypto

import (
	"crypto/sha256"
	"crypto/subtle"
)

// DigestSHA256 returns the raw SHA-256 digest of a byte slice.
func DigestSHA256(data []byte) []byte {
	hash := sha256.Sum256(data)
	return hash[:]
}

// ConstantTimeEqual compares two byte slices without leaking timing.
func ConstantTimeEqual(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}
