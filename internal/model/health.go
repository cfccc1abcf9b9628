// Package model defines the data structures used throughout the application.
//
// Tips and resources are value objects that come from third-party health
// content providers. This service never owns their content; it only tracks
// which ids a user has saved and which ones they recently viewed.
package model

import "time"

// Item kinds, as they appear in API paths (/api/saved/{kind}).
const (
	KindTips      = "tips"
	KindResources = "resources"
)

// ValidKind reports whether kind names a saved-item collection.
func ValidKind(kind string) bool {
	return kind == KindTips || kind == KindResources
}

// Tip is a short piece of health advice.
type Tip struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Summary   string `json:"summary"`
	SourceURL string `json:"sourceUrl,omitempty"`
}

// Resource is a longer health article or topic page.
type Resource struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	ImageURL    string `json:"imageUrl,omitempty"`
	SourceURL   string `json:"sourceUrl,omitempty"`
}

// HistoryItem is one entry in a user's recently-viewed list.
type HistoryItem struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ImageURL    string    `json:"imageUrl"`
	SourceURL   string    `json:"sourceUrl"`
	ViewedAt    time.Time `json:"viewedAt"`
}

// SavedItem records that a user saved one item of a kind.
type SavedItem struct {
	UserID    string    `json:"userId"    db:"user_id"`
	Kind      string    `json:"kind"      db:"kind"`
	ItemID    string    `json:"itemId"    db:"item_id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
