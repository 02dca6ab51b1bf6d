package models

import "time"

// CardImage is a user-uploaded image, reusable as avatar or history attachment.
// Its lifecycle is independent: deck/history/code deletes never cascade here.
type CardImage struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    uint   `gorm:"not null;index"`
	User      User   `gorm:"foreignKey:UserID"`
	ImageURL  string `gorm:"not null"`
	CreatedAt time.Time
}
