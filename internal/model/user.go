package model

import "time"

// User represents a registered account.
//
// PasswordHash is a bcrypt hash and never leaves the server: the json:"-"
// tag keeps it out of every API response.
type User struct {
	ID           string    `json:"id"        db:"id"`
	Email        string    `json:"email"     db:"email"`
	Name         string    `json:"name"      db:"name"`
	PasswordHash string    `json:"-"         db:"password_hash"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}
