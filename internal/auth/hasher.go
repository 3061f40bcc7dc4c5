package auth

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"

	"github.com/Bugian/Sign-up-Log-in-page/internal/pkg/crypto"
)

// Hasher algorithm names accepted by NewHasher.
const (
	HasherBcrypt   = "bcrypt"
	HasherArgon2id = "argon2id"
)

// bcryptMaxInput is the number of bytes bcrypt reads from its input.
const bcryptMaxInput = 72

// Argon2id parameters (OWASP recommendation).
const (
	argon2Time    = 1
	argon2Memory  = 64 * 1024
	argon2Threads = 4
	argon2SaltLen = 16
	argon2KeyLen  = 32
)

// Bounds on the parameters Verify accepts from a stored digest. A digest
// outside them is rejected before any key derivation runs.
const (
	argon2MaxMemory  = 1 << 20 // KiB, 1 GiB
	argon2MaxTime    = 16
	argon2MaxThreads = 16
	argon2MaxKeyLen  = 1024
)

// ErrInvalidHash is returned by Verify when the stored digest cannot be parsed.
var ErrInvalidHash = errors.New("invalid password hash")

// CredentialHasher derives and checks salted password digests.
// Implementations are safe for concurrent use.
type CredentialHasher interface {
	// Hash returns a digest embedding a fresh random salt.
	Hash(plaintext string) (string, error)

	// Verify reports whether plaintext matches digest.
	// It returns (false, nil) on mismatch and an error only for a malformed digest.
	Verify(plaintext, digest string) (bool, error)
}

// NewHasher returns the hasher for the named algorithm.
func NewHasher(algorithm string, bcryptCost int) (CredentialHasher, error) {
	switch algorithm {
	case "", HasherBcrypt:
		return NewBcryptHasher(bcryptCost)
	case HasherArgon2id:
		return NewArgon2idHasher(), nil
	default:
		return nil, fmt.Errorf("unsupported hasher: %s", algorithm)
	}
}

// =============================================================================
// bcrypt
// =============================================================================

// BcryptHasher hashes with bcrypt.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a BcryptHasher. A cost of 0 selects bcrypt.DefaultCost.
func NewBcryptHasher(cost int) (*BcryptHasher, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &BcryptHasher{cost: cost}, nil
}

// Hash produces a bcrypt digest.
func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword(bcryptInput(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(digest), nil
}

// Verify checks plaintext against a bcrypt digest.
func (h *BcryptHasher) Verify(plaintext, digest string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(digest), bcryptInput(plaintext))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
}

// bcryptInput pre-digests inputs longer than bcrypt's limit so that every
// byte of the password affects the result.
func bcryptInput(plaintext string) []byte {
	if len(plaintext) <= bcryptMaxInput {
		return []byte(plaintext)
	}
	return []byte(base64.RawStdEncoding.EncodeToString(crypto.DigestSHA256([]byte(plaintext))))
}

// =============================================================================
// argon2id
// =============================================================================

// Argon2idHasher hashes with argon2id and encodes the result in PHC format.
type Argon2idHasher struct{}

// NewArgon2idHasher creates a new Argon2idHasher.
func NewArgon2idHasher() *Argon2idHasher {
	return &Argon2idHasher{}
}

// Hash produces $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>.
func (h *Argon2idHasher) Hash(plaintext string) (string, error) {
	salt, err := crypto.GenerateSalt(argon2SaltLen)
	if err != nil {
		return "", err
	}

	key := argon2.IDKey([]byte(plaintext), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argon2Memory,
		argon2Time,
		argon2Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify recomputes the key with the parameters stored in digest.
func (h *Argon2idHasher) Verify(plaintext, digest string) (bool, error) {
	parts := strings.Split(digest, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false, ErrInvalidHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}

	var memory, iterations, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
	switch {
	case memory == 0 || memory > argon2MaxMemory:
		return false, fmt.Errorf("%w: memory out of range", ErrInvalidHash)
	case iterations == 0 || iterations > argon2MaxTime:
		return false, fmt.Errorf("%w: iterations out of range", ErrInvalidHash)
	case threads == 0 || threads > argon2MaxThreads:
		return false, fmt.Errorf("%w: threads out of range", ErrInvalidHash)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}

	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
	if len(expected) == 0 || len(expected) > argon2MaxKeyLen {
		return false, fmt.Errorf("%w: key length out of range", ErrInvalidHash)
	}

	computed := argon2.IDKey([]byte(plaintext), salt, iterations, memory, uint8(threads), uint32(len(expected)))

	return crypto.ConstantTimeEqual(computed, expected), nil
}

// Ensure hashers implement CredentialHasher.
var (
	_ CredentialHasher = (*BcryptHasher)(nil)
	_ CredentialHasher = (*Argon2idHasher)(nil)
)
