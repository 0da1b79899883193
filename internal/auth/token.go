package auth

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token validation failures. Validate wraps the underlying jwt error in exactly one of these.
var (
	ErrTokenMalformed    = errors.New("token malformed")
	ErrTokenBadSignature = errors.New("token signature invalid")
	ErrTokenExpired      = errors.New("token expired")
)

// Clock returns the current time.
type Clock func() time.Time

// IssuedToken is a signed token and the times embedded in it.
type IssuedToken struct {
	Value     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenCodec issues and validates HS256 signed JWTs.
type TokenCodec struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    Clock
	parser *jwt.Parser
}

// CodecOption customizes a TokenCodec.
type CodecOption func(*TokenCodec)

// WithClock replaces the wall clock.
func WithClock(clock Clock) CodecOption {
	return func(tc *TokenCodec) {
		tc.now = clock
	}
}

// WithIssuer sets the iss claim on issued tokens and requires it on validation.
func WithIssuer(issuer string) CodecOption {
	return func(tc *TokenCodec) {
		tc.issuer = issuer
	}
}

// WithDefaultTTL sets the lifetime reported by DefaultTTL.
func WithDefaultTTL(ttl time.Duration) CodecOption {
	return func(tc *TokenCodec) {
		tc.ttl = ttl
	}
}

// NewTokenCodec builds a codec signing with secret.
func NewTokenCodec(secret []byte, opts ...CodecOption) (*TokenCodec, error) {
	if len(secret) == 0 {
		return nil, errors.New("token secret must not be empty")
	}
	tc := &TokenCodec{
		secret: secret,
		ttl:    time.Hour,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(tc)
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(tc.now),
	}
	if tc.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(tc.issuer))
	}
	tc.parser = jwt.NewParser(parserOpts...)
	return tc, nil
}

// DefaultTTL returns the configured access token lifetime.
func (tc *TokenCodec) DefaultTTL() time.Duration {
	return tc.ttl
}

// Issue signs a token for subjectID valid from now for at least ttl. Timestamps
// are whole seconds as JWT NumericDates, so exp is now+ttl rounded up; a zero
// ttl yields a token that is already expired.
func (tc *TokenCodec) Issue(subjectID string, ttl time.Duration) (IssuedToken, error) {
	if subjectID == "" {
		return IssuedToken{}, errors.New("subject must not be empty")
	}
	if ttl < 0 {
		return IssuedToken{}, fmt.Errorf("negative ttl %s", ttl)
	}

	now := tc.now()
	exp := now.Add(ttl)
	// NumericDate drops fractions; round up so a positive ttl is never cut short.
	if ttl > 0 && !exp.Equal(exp.Truncate(time.Second)) {
		exp = exp.Truncate(time.Second).Add(time.Second)
	}
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    tc.issuer,
		Subject:   subjectID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tc.secret)
	if err != nil {
		return IssuedToken{}, err
	}
	return IssuedToken{
		Value:     signed,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Validate verifies the signature and then the claims of token and returns its subject.
// The token is expired once now >= exp.
func (tc *TokenCodec) Validate(token string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := tc.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return tc.secret, nil
	})
	if err != nil {
		return "", classify(err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrTokenMalformed)
	}
	return claims.Subject, nil
}

// classify maps jwt errors onto the codec's three failure kinds. Signature errors are
// checked first because the parser reports them before looking at claims.
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrTokenBadSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrTokenExpired, err)
	default:
		return fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
}
