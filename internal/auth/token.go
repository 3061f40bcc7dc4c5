package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Bugian/Sign-up-Log-in-page/internal/domain"
)

// ErrSecretTooShort is returned when the signing secret is missing or shorter
// than MinSecretLength. The service must not start with such a secret.
var ErrSecretTooShort = fmt.Errorf("token signing secret must be at least %d characters", MinSecretLength)

// DecodeReason classifies why a token failed to decode.
type DecodeReason int

const (
	// ReasonMalformed covers structural and claim-shape problems.
	ReasonMalformed DecodeReason = iota

	// ReasonSignatureInvalid means the signature or algorithm did not verify.
	ReasonSignatureInvalid

	// ReasonExpired means the signature verified but exp has passed.
	ReasonExpired
)

func (r DecodeReason) String() string {
	switch r {
	case ReasonSignatureInvalid:
		return "signature_invalid"
	case ReasonExpired:
		return "expired"
	default:
		return "malformed"
	}
}

// DecodeError is returned by TokenCodec.Decode.
type DecodeError struct {
	Reason DecodeReason
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("token %s: %v", e.Reason, e.Err)
}

// Unwrap returns the underlying jwt error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// TokenOption configures a TokenCodec.
type TokenOption func(*TokenCodec)

// WithIssuer sets the iss claim and requires it when decoding.
func WithIssuer(issuer string) TokenOption {
	return func(c *TokenCodec) {
		c.issuer = issuer
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) TokenOption {
	return func(c *TokenCodec) {
		c.now = now
	}
}

// TokenCodec issues and decodes HS256 session tokens.
// It performs no I/O and is safe for concurrent use.
type TokenCodec struct {
	key      []byte
	validity time.Duration
	issuer   string
	now      func() time.Time
	parser   *jwt.Parser
}

// NewTokenCodec creates a codec signing with secret. A validity of 0 selects
// DefaultTokenValidity.
func NewTokenCodec(secret string, validity time.Duration, opts ...TokenOption) (*TokenCodec, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrSecretTooShort
	}
	if validity < 0 {
		return nil, fmt.Errorf("token validity must be positive, got %s", validity)
	}
	if validity == 0 {
		validity = DefaultTokenValidity
	}

	c := &TokenCodec{
		key:      []byte(secret),
		validity: validity,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{SigningAlgorithm}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return c.now() }),
	}
	if c.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(c.issuer))
	}
	c.parser = jwt.NewParser(parserOpts...)

	return c, nil
}

// Validity returns the configured token lifetime.
func (c *TokenCodec) Validity() time.Duration {
	return c.validity
}

// Issue signs a token for the user carrying its username, id and roles.
func (c *TokenCodec) Issue(user *domain.User) (*SessionToken, error) {
	issuedAt := jwt.NewNumericDate(c.now())
	expiresAt := jwt.NewNumericDate(issuedAt.Add(c.validity))

	claims := Claims{
		Roles:  user.Roles.Names(),
		UserID: user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Username,
			Issuer:    c.issuer,
			IssuedAt:  issuedAt,
			ExpiresAt: expiresAt,
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &SessionToken{
		Value:     signed,
		Subject:   user.Username,
		IssuedAt:  issuedAt.Time,
		ExpiresAt: expiresAt.Time,
	}, nil
}

// Decode verifies the signature first and the expiry second, and returns the
// claims. Every failure is a *DecodeError.
func (c *TokenCodec) Decode(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := c.parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return c.key, nil
	})
	if err != nil {
		return nil, classify(err)
	}
	if claims.Subject == "" {
		return nil, &DecodeError{Reason: ReasonMalformed, Err: errors.New("token has no subject")}
	}
	return claims, nil
}

func classify(err error) *DecodeError {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return &DecodeError{Reason: ReasonSignatureInvalid, Err: err}
	case errors.Is(err, jwt.ErrTokenExpired):
		return &DecodeError{Reason: ReasonExpired, Err: err}
	default:
		return &DecodeError{Reason: ReasonMalformed, Err: err}
	}
}

// ReasonOf returns the decode reason of err, or ReasonMalformed.
func ReasonOf(err error) DecodeReason {
	var de *DecodeError
	if errors.As(err, &de) {
		return de.Reason
	}
	return ReasonMalformed
}
