// Package crypto provides cryptographic utilities for the auth service.
package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// SecretSize is the number of random bytes in a generated signing secret.
const SecretSize = 32

// Character sets for generated passwords.
const (
	upperChars   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	lowerChars   = "abcdefghijklmnopqrstuvwxyz"
	digitChars   = "0123456789"
	specialChars = "!@#$%^&*()_+-="
)

// GenerateSecret generates a random signing secret.
// Returns the key as a 64-character hex string.
func GenerateSecret() (string, error) {
	key := make([]byte, SecretSize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("failed to generate secret: %w", err)
	}
	return hex.EncodeToString(key), nil
}

// GenerateSalt returns n random bytes.
func GenerateSalt(n int) ([]byte, error) {
	salt := make([]byte, n)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

// GeneratePassword generates a random password of the given length that
// contains at least one upper-case letter, lower-case letter, digit and
// special character. length must be at least 4.
func GeneratePassword(length int) (string, error) {
	if length < 4 {
		return "", fmt.Errorf("password length must be at least 4, got %d", length)
	}

	all := upperChars + lowerChars + digitChars + specialChars
	sets := []string{upperChars, lowerChars, digitChars, specialChars}

	result := make([]byte, length)
	for i := 0; i < length; i++ {
		charset := all
		if i < len(sets) {
			charset = sets[i]
		}
		c, err := randomChar(charset)
		if err != nil {
			return "", err
		}
		result[i] = c
	}

	// Move the guaranteed characters away from the front.
	for i := length - 1; i > 0; i-- {
		j, err := randomIndex(i + 1)
		if err != nil {
			return "", err
		}
		result[i], result[j] = result[j], result[i]
	}

	return string(result), nil
}

func randomChar(charset string) (byte, error) {
	i, err := randomIndex(len(charset))
	if err != nil {
		return 0, err
	}
	return charset[i], nil
}

// randomIndex returns a uniform index in [0, n) for n <= 256.
func randomIndex(n int) (int, error) {
	limit := 256 - (256 % n)
	var b [1]byte
	for {
		if _, err := rand.Read(b[:]); err != nil {
			return 0, fmt.Errorf("failed to generate random bytes: %w", err)
		}
		if int(b[0]) < limit {
			return int(b[0]) % n, nil
		}
	}
}
