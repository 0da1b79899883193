package auth

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

// fakeClock is a settable Clock for tests.
type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

func (f *fakeClock) Advance(d time.Duration) { f.now = f.now.Add(d) }

func newTestCodec(t *testing.T, clock *fakeClock, opts ...CodecOption) *TokenCodec {
	t.Helper()
	codec, err := NewTokenCodec(testSecret, append([]CodecOption{WithClock(clock.Now), WithIssuer("auth-gate-test")}, opts...)...)
	require.NoError(t, err)
	return codec
}

func TestTokenCodecRoundTrip(t *testing.T) {
	subjects := []string{"alice", "bob@example.com", "user-1234", "ü-unicode", strings.Repeat("x", 256)}
	ttls := []time.Duration{time.Second, 2 * time.Second, time.Minute, time.Hour, 24 * time.Hour, 30 * 24 * time.Hour}

	for _, subject := range subjects {
		for _, ttl := range ttls {
			clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
			codec := newTestCodec(t, clock)

			issued, err := codec.Issue(subject, ttl)
			require.NoError(t, err)
			assert.Equal(t, clock.now, issued.IssuedAt)
			assert.Equal(t, clock.now.Add(ttl), issued.ExpiresAt)

			got, err := codec.Validate(issued.Value)
			require.NoError(t, err, "fresh token for %q ttl %s", subject, ttl)
			assert.Equal(t, subject, got)

			clock.Advance(ttl - time.Second)
			got, err = codec.Validate(issued.Value)
			require.NoError(t, err, "last valid second for %q ttl %s", subject, ttl)
			assert.Equal(t, subject, got)
		}
	}
}

func TestTokenCodecExpiry(t *testing.T) {
	t.Run("zero ttl is expired at issue time and after", func(t *testing.T) {
		clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
		codec := newTestCodec(t, clock)

		issued, err := codec.Issue("alice", 0)
		require.NoError(t, err)

		_, err = codec.Validate(issued.Value)
		assert.ErrorIs(t, err, ErrTokenExpired)

		clock.Advance(time.Second)
		_, err = codec.Validate(issued.Value)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("expires exactly at exp", func(t *testing.T) {
		clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
		codec := newTestCodec(t, clock)

		issued, err := codec.Issue("alice", time.Minute)
		require.NoError(t, err)

		clock.Advance(time.Minute)
		_, err = codec.Validate(issued.Value)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("sub-second ttl is usable", func(t *testing.T) {
		clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
		codec := newTestCodec(t, clock)

		issued, err := codec.Issue("alice", 500*time.Millisecond)
		require.NoError(t, err)
		assert.Equal(t, clock.now.Add(time.Second), issued.ExpiresAt)

		got, err := codec.Validate(issued.Value)
		require.NoError(t, err)
		assert.Equal(t, "alice", got)

		clock.Advance(time.Second)
		_, err = codec.Validate(issued.Value)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("fractional clock keeps the full ttl", func(t *testing.T) {
		clock := &fakeClock{now: time.Unix(1_700_000_000, 700_000_000)}
		codec := newTestCodec(t, clock)

		issued, err := codec.Issue("alice", time.Second)
		require.NoError(t, err)
		assert.Equal(t, time.Unix(1_700_000_002, 0), issued.ExpiresAt)

		clock.Advance(999 * time.Millisecond)
		_, err = codec.Validate(issued.Value)
		assert.NoError(t, err)
	})

	t.Run("zero ttl on a fractional clock is expired", func(t *testing.T) {
		clock := &fakeClock{now: time.Unix(1_700_000_000, 700_000_000)}
		codec := newTestCodec(t, clock)

		issued, err := codec.Issue("alice", 0)
		require.NoError(t, err)
		_, err = codec.Validate(issued.Value)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("negative ttl rejected", func(t *testing.T) {
		codec := newTestCodec(t, &fakeClock{now: time.Unix(1_700_000_000, 0)})
		_, err := codec.Issue("alice", -time.Second)
		assert.Error(t, err)
	})
}

func TestTokenCodecSignatureTampering(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	codec := newTestCodec(t, clock)

	issued, err := codec.Issue("alice", time.Hour)
	require.NoError(t, err)

	parts := strings.Split(issued.Value, ".")
	require.Len(t, parts, 3)
	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	require.NoError(t, err)
	require.Len(t, sig, 32)

	for i := range sig {
		tampered := append([]byte(nil), sig...)
		tampered[i] ^= 0x01
		token := parts[0] + "." + parts[1] + "." + base64.RawURLEncoding.EncodeToString(tampered)

		_, err := codec.Validate(token)
		assert.ErrorIs(t, err, ErrTokenBadSignature, "byte %d", i)
	}
}

func TestTokenCodecRejectsForeignTokens(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	codec := newTestCodec(t, clock)

	claims := jwt.RegisteredClaims{
		Subject:   "mallory",
		Issuer:    "auth-gate-test",
		IssuedAt:  jwt.NewNumericDate(clock.now),
		ExpiresAt: jwt.NewNumericDate(clock.now.Add(time.Hour)),
	}

	sign := func(t *testing.T, method jwt.SigningMethod, key interface{}, c jwt.Claims) string {
		t.Helper()
		s, err := jwt.NewWithClaims(method, c).SignedString(key)
		require.NoError(t, err)
		return s
	}

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{
			name:    "other secret",
			token:   sign(t, jwt.SigningMethodHS256, []byte("another-secret-another-secret-!!"), claims),
			wantErr: ErrTokenBadSignature,
		},
		{
			name:    "alg none",
			token:   sign(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, claims),
			wantErr: ErrTokenBadSignature,
		},
		{
			name:    "other hmac size with same secret",
			token:   sign(t, jwt.SigningMethodHS384, testSecret, claims),
			wantErr: ErrTokenBadSignature,
		},
		{
			name:    "expired and signed by someone else reports signature",
			token:   sign(t, jwt.SigningMethodHS256, []byte("x"), jwt.RegisteredClaims{Subject: "a", ExpiresAt: jwt.NewNumericDate(clock.now.Add(-time.Hour))}),
			wantErr: ErrTokenBadSignature,
		},
		{
			name:    "not a jwt",
			token:   "not-a-token",
			wantErr: ErrTokenMalformed,
		},
		{
			name:    "empty",
			token:   "",
			wantErr: ErrTokenMalformed,
		},
		{
			name:    "garbage segments",
			token:   "a.b.c",
			wantErr: ErrTokenMalformed,
		},
		{
			name: "missing exp",
			token: sign(t, jwt.SigningMethodHS256, testSecret, jwt.RegisteredClaims{
				Subject: "alice",
				Issuer:  "auth-gate-test",
			}),
			wantErr: ErrTokenMalformed,
		},
		{
			name: "missing subject",
			token: sign(t, jwt.SigningMethodHS256, testSecret, jwt.RegisteredClaims{
				Issuer:    "auth-gate-test",
				ExpiresAt: jwt.NewNumericDate(clock.now.Add(time.Hour)),
			}),
			wantErr: ErrTokenMalformed,
		},
		{
			name: "wrong issuer",
			token: sign(t, jwt.SigningMethodHS256, testSecret, jwt.RegisteredClaims{
				Subject:   "alice",
				Issuer:    "someone-else",
				ExpiresAt: jwt.NewNumericDate(clock.now.Add(time.Hour)),
			}),
			wantErr: ErrTokenMalformed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subject, err := codec.Validate(tt.token)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, subject)
		})
	}
}

func TestNewTokenCodec(t *testing.T) {
	_, err := NewTokenCodec(nil)
	assert.Error(t, err)

	codec, err := NewTokenCodec(testSecret, WithDefaultTTL(15*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, codec.DefaultTTL())

	_, err = codec.Issue("", time.Minute)
	assert.Error(t, err)
}
