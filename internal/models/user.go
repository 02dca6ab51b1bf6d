package models

import "time"

// User & profile models
type User struct {
	ID       uint   `gorm:"primaryKey"`
	GoogleID string `gorm:"uniqueIndex"` // external profile reference; empty for local accounts
	Email    string `gorm:"unique;not null;index"`
	Password string // bcrypt hash; empty for OAuth-only accounts
	Name     string `gorm:"not null"`
	Nickname string // optional display alias
	// AvatarURL points at a CardImage the user picked, or the provider picture from first login.
	AvatarURL string
	Bio       string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DisplayName prefers the nickname when one is set.
func (u User) DisplayName() string {
	if u.Nickname != "" {
		return u.Nickname
	}
	return u.Name
}
