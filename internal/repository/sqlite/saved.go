package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/sakif/health-companion/internal/apperror"
	"github.com/sakif/health-companion/internal/model"
	"github.com/sakif/health-companion/internal/repository"
)

var _ repository.SavedItemRepository = (*DB)(nil)

// ListSaved returns the item ids userID saved under kind, oldest first.
// It never returns nil, so the JSON encoding is [] rather than null.
func (db *DB) ListSaved(ctx context.Context, userID, kind string) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT item_id FROM saved_items
		 WHERE user_id = ? AND kind = ?
		 ORDER BY seq`,
		userID, kind,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing saved %s for %s: %w", kind, userID, err)
	}
	// rows MUST be closed or the connection leaks back to the pool busy.
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: scanning saved item: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating saved items: %w", err)
	}
	return ids, nil
}

// AddSaved records item. Saving the same (user, kind, item) twice returns
// apperror.AlreadySaved.
func (db *DB) AddSaved(ctx context.Context, item *model.SavedItem) error {
	item.CreatedAt = time.Now().UTC()

	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO saved_items (user_id, kind, item_id, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id, kind, item_id) DO NOTHING`,
		item.UserID, item.Kind, item.ItemID, item.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: saving %s %s: %w", item.Kind, item.ItemID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking save of %s %s: %w", item.Kind, item.ItemID, err)
	}
	if n == 0 {
		return apperror.AlreadySaved(singular(item.Kind), item.ItemID)
	}
	return nil
}

// RemoveSaved deletes one saved item. Removing something that isn't saved
// returns apperror.ErrNotFound.
func (db *DB) RemoveSaved(ctx context.Context, userID, kind, itemID string) error {
	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM saved_items WHERE user_id = ? AND kind = ? AND item_id = ?`,
		userID, kind, itemID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: removing %s %s: %w", kind, itemID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking removal of %s %s: %w", kind, itemID, err)
	}
	if n == 0 {
		return apperror.NotFound("saved "+singular(kind), itemID)
	}
	return nil
}

// singular turns a kind ("tips") into the word used in messages ("tip").
func singular(kind string) string {
	switch kind {
	case model.KindTips:
		return "tip"
	case model.KindResources:
		return "resource"
	}
	return kind
}
