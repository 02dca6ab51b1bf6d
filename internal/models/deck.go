package models

import "time"

// Deck status values shared by histories and codes.
const (
	StatusMain  = "main"
	StatusSub   = "sub"
	StatusDraft = "draft"
)

// Deck domain models
type Deck struct {
	ID          uint   `gorm:"primaryKey"`
	UserID      uint   `gorm:"not null;index"`
	User        User   `gorm:"foreignKey:UserID"`
	Title       string `gorm:"size:300;not null"`
	Description string
	Histories   []DeckHistory `gorm:"foreignKey:DeckID"`
	Codes       []DeckCode    `gorm:"foreignKey:DeckID"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DeckHistory is one versioned snapshot of a deck's notes.
// Status is main, sub or draft; only display semantics, unlike DeckCode.Status.
type DeckHistory struct {
	ID           uint   `gorm:"primaryKey"`
	DeckID       uint   `gorm:"not null;index"`
	Status       string `gorm:"size:100;not null"`
	Content      string
	CardImageURL string // optional attached CardImage
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DeckCode carries the literal game deck-code plus its rendered preview image.
// HistoryID is a nullable back-reference, not ownership: a code may be deck-scoped only.
// At most one code per deck holds StatusMain; enforced by DeckService.PromoteCodeToMain.
type DeckCode struct {
	ID        uint   `gorm:"primaryKey"`
	DeckID    uint   `gorm:"not null;index"`
	HistoryID *uint  `gorm:"index"`
	Code      string `gorm:"size:100;not null"`
	ImageURL  string
	Status    string `gorm:"size:100;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
