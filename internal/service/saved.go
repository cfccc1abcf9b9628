package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/health-companion/internal/apperror"
	"github.com/sakif/health-companion/internal/model"
	"github.com/sakif/health-companion/internal/repository"
)

// SavedService manages each user's saved tips and resources.
type SavedService struct {
	repo   repository.SavedItemRepository
	logger *slog.Logger
}

func NewSavedService(repo repository.SavedItemRepository, logger *slog.Logger) *SavedService {
	return &SavedService{repo: repo, logger: logger}
}

// List returns the ids userID saved under kind, oldest first.
func (s *SavedService) List(ctx context.Context, userID, kind string) ([]string, error) {
	if err := checkKind(kind); err != nil {
		return nil, err
	}

	ids, err := s.repo.ListSaved(ctx, userID, kind)
	if err != nil {
		return nil, fmt.Errorf("listing saved %s: %w", kind, err)
	}
	return ids, nil
}

// Save records itemID. Saving twice returns a conflict with
// apperror.CodeAlreadySaved.
func (s *SavedService) Save(ctx context.Context, userID, kind, itemID string) error {
	if err := checkKind(kind); err != nil {
		return err
	}

	item := &model.SavedItem{UserID: userID, Kind: kind, ItemID: itemID}
	if err := s.repo.AddSaved(ctx, item); err != nil {
		return fmt.Errorf("saving %s %s: %w", kind, itemID, err)
	}

	s.logger.Info("item saved",
		slog.String("userID", userID),
		slog.String("kind", kind),
		slog.String("itemID", itemID),
	)
	return nil
}

// Remove deletes itemID. Removing something not saved returns
// apperror.ErrNotFound.
func (s *SavedService) Remove(ctx context.Context, userID, kind, itemID string) error {
	if err := checkKind(kind); err != nil {
		return err
	}
	if itemID == "" {
		return apperror.ValidationFailed("itemId", "itemId is required")
	}

	if err := s.repo.RemoveSaved(ctx, userID, kind, itemID); err != nil {
		return fmt.Errorf("removing %s %s: %w", kind, itemID, err)
	}

	s.logger.Info("item removed",
		slog.String("userID", userID),
		slog.String("kind", kind),
		slog.String("itemID", itemID),
	)
	return nil
}

func checkKind(kind string) error {
	if !model.ValidKind(kind) {
		return &apperror.AppError{
			Err:     apperror.ErrNotFound,
			Message: fmt.Sprintf("unknown collection %q", kind),
		}
	}
	return nil
}
