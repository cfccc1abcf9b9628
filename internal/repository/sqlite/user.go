package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/health-companion/internal/apperror"
	"github.com/sakif/health-companion/internal/model"
	"github.com/sakif/health-companion/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

// CreateUser inserts a new account. The email is normalised to lower case.
//
// ON CONFLICT DO NOTHING turns a duplicate email into "0 rows affected"
// instead of a driver-specific constraint error.
func (db *DB) CreateUser(ctx context.Context, u *model.User) error {
	now := time.Now().UTC()
	u.ID = xid.New().String()
	u.Email = strings.ToLower(u.Email)
	u.CreatedAt = now
	u.UpdatedAt = now

	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, email, name, password_hash, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(email) DO NOTHING`,
		u.ID,
		u.Email,
		u.Name,
		u.PasswordHash,
		u.CreatedAt,
		u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting user %s: %w", u.Email, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking insert of user %s: %w", u.Email, err)
	}
	if n == 0 {
		return &apperror.AppError{
			Err:     apperror.ErrConflict,
			Message: "an account with this email already exists",
			Field:   "email",
		}
	}
	return nil
}

// GetUserByID returns apperror.ErrNotFound if there is no such user.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	u, err := db.scanUser(db.conn.QueryRowContext(ctx,
		`SELECT id, email, name, password_hash, created_at, updated_at
		 FROM users WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return u, nil
}

// GetUserByEmail returns apperror.ErrNotFound if there is no such user.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	email = strings.ToLower(email)
	u, err := db.scanUser(db.conn.QueryRowContext(ctx,
		`SELECT id, email, name, password_hash, created_at, updated_at
		 FROM users WHERE email = ?`, email,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &apperror.AppError{
				Err:     apperror.ErrNotFound,
				Message: "user not found",
				Code:    apperror.CodeNotFound,
			}
		}
		return nil, fmt.Errorf("sqlite: getting user by email: %w", err)
	}
	return u, nil
}

// UpdatePassword replaces the stored hash for user id.
func (db *DB) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		passwordHash, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating password for %s: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking password update for %s: %w", id, err)
	}
	if n == 0 {
		return apperror.NotFound("user", id)
	}
	return nil
}

func (db *DB) scanUser(row *sql.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Name,
		&u.PasswordHash,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
