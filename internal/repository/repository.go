// Package repository declares the storage interfaces the service layer
// depends on. Implementations live in subpackages (repository/sqlite).
package repository

import (
	"context"

	"github.com/sakif/health-companion/internal/model"
)

// UserRepository reads and writes user accounts.
type UserRepository interface {
	// CreateUser inserts u, filling in ID and timestamps. A taken email
	// returns apperror.ErrConflict.
	CreateUser(ctx context.Context, u *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	// GetUserByEmail matches case-insensitively.
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

// SavedItemRepository records which items each user has saved.
type SavedItemRepository interface {
	// ListSaved returns item ids in the order they were saved.
	ListSaved(ctx context.Context, userID, kind string) ([]string, error)
	// AddSaved returns an apperror with CodeAlreadySaved for duplicates.
	AddSaved(ctx context.Context, item *model.SavedItem) error
	// RemoveSaved returns apperror.ErrNotFound if the item wasn't saved.
	RemoveSaved(ctx context.Context, userID, kind, itemID string) error
}
