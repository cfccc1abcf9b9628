// Package auth issues and checks the credentials for the health-companion API.
//
// FLOW:
//  1. POST /api/auth/login with email + password
//  2. PasswordService verifies the bcrypt hash
//  3. TokenService signs a JWT whose "sub" is the user id
//  4. The client sends it back as "Authorization: Bearer <jwt>"
//  5. RequireAuth validates it and puts the user id in the request context
//
// JWTs are stateless: the signature (HMAC-SHA256 over header.payload) is all
// the server needs to trust the subject, no session table.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	issuer = "health-companion"

	// DefaultTokenTTL is how long an access token stays valid. There is no
	// refresh flow: when it lapses the server answers 401 and the client
	// logs out.
	DefaultTokenTTL = time.Hour
)

// TokenService signs and verifies JWT access tokens with one HMAC secret.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService creates a TokenService. The secret must be at least 16
// characters; generate one with `openssl rand -hex 32`.
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret), ttl: DefaultTokenTTL, now: time.Now}, nil
}

type claims struct {
	jwt.RegisteredClaims
}

// Generate signs a token for userID and returns it with its expiry.
func (s *TokenService) Generate(userID string) (string, time.Time, error) {
	return s.GenerateWithDuration(userID, s.ttl)
}

// GenerateWithDuration signs a token that expires after d. A negative d
// gives an already-expired token, which tests use.
func (s *TokenService) GenerateWithDuration(userID string, d time.Duration) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(d)

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Issuer:    issuer,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, expiresAt, nil
}

// Validate verifies tokenStr and returns the user id in its subject.
//
// Pinning the method to HS256 stops "alg: none" and RS/HS confusion tricks.
func (s *TokenService) Validate(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", errors.New("auth: token expired")
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", errors.New("auth: invalid token claims")
	}
	if c.Subject == "" {
		return "", errors.New("auth: token has no subject")
	}
	return c.Subject, nil
}
