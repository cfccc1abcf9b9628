// Package service holds the business rules, between the HTTP handlers and the
// repositories:
//
//	Handler (HTTP) → Service (rules) → Repository (SQL)
//
// Services take plain values and return apperror domain errors. They know
// nothing about HTTP, so handlers decide the status codes.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/health-companion/internal/apperror"
	"github.com/sakif/health-companion/internal/auth"
	"github.com/sakif/health-companion/internal/model"
	"github.com/sakif/health-companion/internal/repository"
)

// errBadCredentials is deliberately vague: it must not reveal whether the
// email exists.
var errBadCredentials = apperror.Unauthorized("invalid email or password")

// AuthService registers users, checks credentials and issues tokens.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// AuthResult is what a successful register or login hands back.
type AuthResult struct {
	User      *model.User
	Token     string
	ExpiresAt time.Time
}

// Register creates an account and logs it in. Field formats have already
// been checked by the validation middleware.
func (s *AuthService) Register(ctx context.Context, email, password, name string) (*AuthResult, error) {
	if len(password) > auth.MaxPasswordBytes {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("password must be %d bytes or fewer", auth.MaxPasswordBytes))
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}

	user := &model.User{Email: email, Name: name, PasswordHash: hash}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: registering %s: %w", email, err)
	}

	s.logger.Info("user registered", slog.String("userID", user.ID))
	return s.issue(user)
}

// Login checks email and password and issues a token. Unknown emails and
// wrong passwords produce the same error.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, errBadCredentials
		}
		return nil, fmt.Errorf("service/auth: looking up %s: %w", email, err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrInvalidPassword) {
			s.logger.Info("login rejected", slog.String("userID", user.ID))
			return nil, errBadCredentials
		}
		return nil, fmt.Errorf("service/auth: verifying password for %s: %w", user.ID, err)
	}

	return s.issue(user)
}

// ChangePassword replaces userID's password after checking the current one.
//
// A wrong current password is a validation error, not 401: a 401 would log
// the client out.
func (s *AuthService) ChangePassword(ctx context.Context, userID, current, next string) error {
	if len(next) > auth.MaxPasswordBytes {
		return apperror.ValidationFailed("newPassword",
			fmt.Sprintf("newPassword must be %d bytes or fewer", auth.MaxPasswordBytes))
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("service/auth: fetching user %s: %w", userID, err)
	}

	if err := s.passwords.Verify(user.PasswordHash, current); err != nil {
		if errors.Is(err, auth.ErrInvalidPassword) {
			return apperror.ValidationFailed("currentPassword", "current password is incorrect")
		}
		return fmt.Errorf("service/auth: verifying password for %s: %w", userID, err)
	}

	hash, err := s.passwords.Hash(next)
	if err != nil {
		return fmt.Errorf("service/auth: hashing password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("service/auth: updating password for %s: %w", userID, err)
	}

	s.logger.Info("password changed", slog.String("userID", userID))
	return nil
}

// GetUserByID backs GET /api/me.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, fmt.Errorf("service/auth: user ID must not be empty")
	}

	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", id, err)
	}
	return user, nil
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, expiresAt, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token, ExpiresAt: expiresAt}, nil
}
