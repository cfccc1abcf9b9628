package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-at-least-16-chars!!"

func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	ts, err := NewTokenService(testSecret)
	require.NoError(t, err)
	return ts
}

func TestNewTokenService_SecretLength(t *testing.T) {
	_, err := NewTokenService("short")
	assert.Error(t, err)

	_, err = NewTokenService("this-is-16-chars")
	assert.NoError(t, err)
}

func TestTokenService_RoundTrip(t *testing.T) {
	ts := newTestTokenService(t)

	token, exp, err := ts.Generate("user-abc-123")
	require.NoError(t, err)
	assert.Len(t, strings.Split(token, "."), 3, "header.payload.signature")
	assert.WithinDuration(t, time.Now().Add(DefaultTokenTTL), exp, 5*time.Second)

	got, err := ts.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "user-abc-123", got)

	other, _, err := ts.Generate("user-def-456")
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}

func TestTokenService_ExpiryFollowsClock(t *testing.T) {
	ts := newTestTokenService(t)
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	ts.now = func() time.Time { return now }

	token, exp, err := ts.Generate("user-123")
	require.NoError(t, err)
	assert.True(t, exp.Equal(now.Add(DefaultTokenTTL)), "expiry = %v", exp)

	now = now.Add(DefaultTokenTTL - time.Minute)
	_, err = ts.Validate(token)
	assert.NoError(t, err, "still valid a minute before expiry")

	now = now.Add(2 * time.Minute)
	_, err = ts.Validate(token)
	assert.ErrorContains(t, err, "expired")
}

// signWith builds a token by hand so tests can produce claims Generate
// never would.
func signWith(t *testing.T, method jwt.SigningMethod, key any, rc jwt.RegisteredClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims{RegisteredClaims: rc}).SignedString(key)
	require.NoError(t, err)
	return s
}

func TestTokenService_Rejects(t *testing.T) {
	ts := newTestTokenService(t)
	good, _, err := ts.Generate("user-123")
	require.NoError(t, err)

	expired, _, err := ts.GenerateWithDuration("user-123", -time.Second)
	require.NoError(t, err)

	foreign, err := NewTokenService("another-secret-entirely-32chars!")
	require.NoError(t, err)
	foreignToken, _, err := foreign.Generate("user-123")
	require.NoError(t, err)

	future := jwt.NewNumericDate(time.Now().Add(time.Hour))

	tests := map[string]string{
		"empty":              "",
		"garbage":            "not.a.jwt.token",
		"tampered signature": good[:len(good)-3] + "xxx",
		"expired":            expired,
		"other secret":       foreignToken,
		"wrong issuer": signWith(t, jwt.SigningMethodHS256, []byte(testSecret),
			jwt.RegisteredClaims{Subject: "user-123", Issuer: "someone-else", ExpiresAt: future}),
		"no expiry": signWith(t, jwt.SigningMethodHS256, []byte(testSecret),
			jwt.RegisteredClaims{Subject: "user-123", Issuer: issuer}),
		"no subject": signWith(t, jwt.SigningMethodHS256, []byte(testSecret),
			jwt.RegisteredClaims{Issuer: issuer, ExpiresAt: future}),
		"alg none": signWith(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType,
			jwt.RegisteredClaims{Subject: "user-123", Issuer: issuer, ExpiresAt: future}),
		"HS512": signWith(t, jwt.SigningMethodHS512, []byte(testSecret),
			jwt.RegisteredClaims{Subject: "user-123", Issuer: issuer, ExpiresAt: future}),
	}

	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			id, err := ts.Validate(token)
			assert.Error(t, err)
			assert.Empty(t, id)
		})
	}
}
