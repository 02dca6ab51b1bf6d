package services

import (
	"context"
	"errors"
	"log"

	"gorm.io/gorm"

	"github.com/nasubi-dev/artsdeck/internal/config"
	"github.com/nasubi-dev/artsdeck/internal/imageapi"
	"github.com/nasubi-dev/artsdeck/internal/models"
	"github.com/nasubi-dev/artsdeck/internal/validation"
)

// DeckImageAPI is the slice of the image microservice the deck workflow needs.
// Satisfied by *imageapi.Client; substituted in tests.
type DeckImageAPI interface {
	FetchDeckImage(ctx context.Context, deckCode string, deckID uint) (string, error)
	Publish(ctx context.Context, deckCodeID uint, deckCode string) error
}

// defaultHistoryContent fills the notes of a history created without text.
const defaultHistoryContent = "No notes yet."

// DeckService orchestrates the deck / history / code workflow. The multi-step
// creates are intentionally not wrapped in one transaction: a later step
// failing leaves the earlier rows committed, surfaced as a WorkflowError.
type DeckService struct {
	DB  *gorm.DB
	API DeckImageAPI
	Env config.Environment
}

func NewDeckService(db *gorm.DB, api DeckImageAPI, env config.Environment) *DeckService {
	return &DeckService{DB: db, API: api, Env: env}
}

type CreateDeckInput struct {
	UserID       uint
	Title        string
	Description  string
	Code         string // required: every new deck starts with a code
	Content      string
	CardImageURL string
}

// CreateDeck inserts the deck, then delegates to CreateDeckHistory with the
// first-code flag forced on. The deck row is not rolled back when the
// downstream history/code creation fails; the WorkflowError carries its id.
func (s *DeckService) CreateDeck(ctx context.Context, in CreateDeckInput) (uint, error) {
	v := validation.Violations{}
	if in.UserID == 0 {
		v["userId"] = "required"
	}
	validation.Required("title", in.Title, v)
	validation.Length("title", in.Title, 1, 300, v)
	validation.Required("code", in.Code, v)
	validation.Length("code", in.Code, 1, 100, v)
	if !v.Empty() {
		return 0, newValidationError(v, "userId", "title", "code")
	}

	deck := models.Deck{UserID: in.UserID, Title: in.Title, Description: in.Description}
	if err := s.DB.WithContext(ctx).Create(&deck).Error; err != nil {
		return 0, &PersistenceError{Op: "create deck", Err: err}
	}

	_, err := s.CreateDeckHistory(ctx, deck.ID, CreateHistoryInput{
		Status:       models.StatusMain,
		Content:      in.Content,
		CardImageURL: in.CardImageURL,
		Code:         in.Code,
		IsFirst:      "true",
	})
	if err != nil {
		return deck.ID, &WorkflowError{Step: "create first history", DeckID: deck.ID, Err: err}
	}
	return deck.ID, nil
}

type CreateHistoryInput struct {
	Status       string
	Content      string
	CardImageURL string
	Code         string // optional; non-empty triggers code creation
	IsFirst      string // checkbox-style flag: "on" or "true" promotes the new code
}

// CreateDeckHistory inserts a history row and, when a code was supplied,
// creates the deck code and optionally promotes it to main.
func (s *DeckService) CreateDeckHistory(ctx context.Context, deckID uint, in CreateHistoryInput) (uint, error) {
	if in.Status == "" {
		in.Status = models.StatusMain
	}
	if in.Content == "" {
		in.Content = defaultHistoryContent
	}
	v := validation.Violations{}
	if deckID == 0 {
		v["deckId"] = "required"
	}
	validation.Length("status", in.Status, 1, 100, v)
	validation.OneOf("status", in.Status, []string{models.StatusMain, models.StatusSub, models.StatusDraft}, v)
	validation.URL("cardImageUrl", in.CardImageURL, v)
	if in.Code != "" {
		validation.Length("code", in.Code, 1, 100, v)
	}
	if !v.Empty() {
		return 0, newValidationError(v, "deckId", "status", "cardImageUrl", "code")
	}

	history := models.DeckHistory{DeckID: deckID, Status: in.Status, Content: in.Content, CardImageURL: in.CardImageURL}
	if err := s.DB.WithContext(ctx).Create(&history).Error; err != nil {
		return 0, &PersistenceError{Op: "create deck history", Err: err}
	}

	if in.Code != "" {
		isFirst := in.IsFirst == "on" || in.IsFirst == "true"
		if _, err := s.createDeckCode(ctx, deckID, history.ID, in.Code, isFirst); err != nil {
			return history.ID, err
		}
		if isFirst {
			if err := s.PromoteCodeToMain(ctx, deckID, history.ID); err != nil {
				return history.ID, err
			}
		}
	}
	return history.ID, nil
}

// createDeckCode inserts a code row, acquiring its preview image per environment.
// Development blocks on the render service and writes no row when it fails.
// Production commits a placeholder row first, then fires the publish call; a
// failed publish leaves the placeholder in place.
func (s *DeckService) createDeckCode(ctx context.Context, deckID, historyID uint, code string, isFirst bool) (uint, error) {
	status := models.StatusSub
	if isFirst {
		status = models.StatusMain
	}
	dc := models.DeckCode{DeckID: deckID, HistoryID: &historyID, Code: code, Status: status}

	if !s.Env.IsProduction() {
		url, err := s.API.FetchDeckImage(ctx, code, deckID)
		if err != nil {
			return 0, &ExternalServiceError{Op: "fetch deck image", Err: err}
		}
		dc.ImageURL = url
		if err := s.DB.WithContext(ctx).Create(&dc).Error; err != nil {
			return 0, &PersistenceError{Op: "create deck code", Err: err}
		}
		return dc.ID, nil
	}

	dc.ImageURL = imageapi.PlaceholderImageURL
	if err := s.DB.WithContext(ctx).Create(&dc).Error; err != nil {
		return 0, &PersistenceError{Op: "create deck code", Err: err}
	}
	if err := s.API.Publish(ctx, dc.ID, code); err != nil {
		// Row is already committed; the code keeps its placeholder image.
		log.Printf("publish deck code %d failed: %v", dc.ID, err)
	}
	return dc.ID, nil
}

// UpdateDeckCode replaces the code string of the code attached to historyID.
// Submitting the currently-stored string is a no-op. A changed string goes
// through the same environment branch as creation.
func (s *DeckService) UpdateDeckCode(ctx context.Context, historyID uint, code string) error {
	var dc models.DeckCode
	err := s.DB.WithContext(ctx).Where("history_id = ?", historyID).First(&dc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return &PersistenceError{Op: "load deck code", Err: err}
	}
	if dc.Code == code {
		return nil
	}
	v := validation.Violations{}
	validation.Required("code", code, v)
	validation.Length("code", code, 1, 100, v)
	if !v.Empty() {
		return newValidationError(v, "code")
	}

	if !s.Env.IsProduction() {
		url, err := s.API.FetchDeckImage(ctx, code, dc.DeckID)
		if err != nil {
			return &ExternalServiceError{Op: "fetch deck image", Err: err}
		}
		dc.Code = code
		dc.ImageURL = url
		if err := s.DB.WithContext(ctx).Save(&dc).Error; err != nil {
			return &PersistenceError{Op: "update deck code", Err: err}
		}
		return nil
	}

	dc.Code = code
	dc.ImageURL = imageapi.PlaceholderImageURL
	if err := s.DB.WithContext(ctx).Save(&dc).Error; err != nil {
		return &PersistenceError{Op: "update deck code", Err: err}
	}
	if err := s.API.Publish(ctx, dc.ID, code); err != nil {
		log.Printf("publish deck code %d failed: %v", dc.ID, err)
	}
	return nil
}

// PromoteCodeToMain makes the code attached to historyID the deck's sole main
// code: reset every code of the deck to sub, then flip the target to main.
// Both updates run in one transaction so concurrent promotions cannot leave
// the deck with zero or two main codes.
func (s *DeckService) PromoteCodeToMain(ctx context.Context, deckID, historyID uint) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.DeckCode{}).
			Where("deck_id = ?", deckID).
			Update("status", models.StatusSub).Error; err != nil {
			return err
		}
		res := tx.Model(&models.DeckCode{}).
			Where("deck_id = ? AND history_id = ?", deckID, historyID).
			Update("status", models.StatusMain)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return &PersistenceError{Op: "promote deck code", Err: err}
	}
	return nil
}

type UpdateHistoryInput struct {
	Status       string
	Content      string
	CardImageURL string
}

// UpdateDeckHistory edits a history in place. Empty fields keep their value.
func (s *DeckService) UpdateDeckHistory(ctx context.Context, historyID uint, in UpdateHistoryInput) error {
	var h models.DeckHistory
	err := s.DB.WithContext(ctx).First(&h, historyID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return &PersistenceError{Op: "load deck history", Err: err}
	}
	v := validation.Violations{}
	if in.Status != "" {
		validation.OneOf("status", in.Status, []string{models.StatusMain, models.StatusSub, models.StatusDraft}, v)
		h.Status = in.Status
	}
	validation.URL("cardImageUrl", in.CardImageURL, v)
	if !v.Empty() {
		return newValidationError(v, "status", "cardImageUrl")
	}
	if in.Content != "" {
		h.Content = in.Content
	}
	if in.CardImageURL != "" {
		h.CardImageURL = in.CardImageURL
	}
	if err := s.DB.WithContext(ctx).Save(&h).Error; err != nil {
		return &PersistenceError{Op: "update deck history", Err: err}
	}
	return nil
}

// DeleteDeck removes the deck and everything it owns, dependents first:
// codes, then histories, then the deck row. No transaction wraps the steps;
// a mid-sequence failure aborts and leaves a partially-deleted deck.
func (s *DeckService) DeleteDeck(ctx context.Context, deckID uint) error {
	if err := s.DB.WithContext(ctx).Where("deck_id = ?", deckID).Delete(&models.DeckCode{}).Error; err != nil {
		return &PersistenceError{Op: "delete deck codes", Err: err}
	}
	if err := s.DB.WithContext(ctx).Where("deck_id = ?", deckID).Delete(&models.DeckHistory{}).Error; err != nil {
		return &PersistenceError{Op: "delete deck histories", Err: err}
	}
	res := s.DB.WithContext(ctx).Delete(&models.Deck{}, deckID)
	if res.Error != nil {
		return &PersistenceError{Op: "delete deck", Err: res.Error}
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteDeckHistory removes one history and the codes attached to it.
// Sibling histories and their codes are untouched.
func (s *DeckService) DeleteDeckHistory(ctx context.Context, historyID uint) error {
	if err := s.DB.WithContext(ctx).Where("history_id = ?", historyID).Delete(&models.DeckCode{}).Error; err != nil {
		return &PersistenceError{Op: "delete history codes", Err: err}
	}
	res := s.DB.WithContext(ctx).Delete(&models.DeckHistory{}, historyID)
	if res.Error != nil {
		return &PersistenceError{Op: "delete deck history", Err: res.Error}
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Get loads one deck with its histories and codes, newest history first.
func (s *DeckService) Get(ctx context.Context, deckID uint) (*models.Deck, error) {
	var deck models.Deck
	err := s.DB.WithContext(ctx).
		Preload("Histories", func(db *gorm.DB) *gorm.DB { return db.Order("created_at desc") }).
		Preload("Codes").
		First(&deck, deckID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &PersistenceError{Op: "load deck", Err: err}
	}
	return &deck, nil
}

// List returns a page of a user's decks, newest first, plus the total count.
func (s *DeckService) List(ctx context.Context, userID uint, limit, offset int) ([]models.Deck, int64, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	q := s.DB.WithContext(ctx).Where("user_id = ?", userID)
	var total int64
	if err := q.Model(&models.Deck{}).Count(&total).Error; err != nil {
		return nil, 0, &PersistenceError{Op: "count decks", Err: err}
	}
	var decks []models.Deck
	if err := q.Order("id desc").Limit(limit).Offset(offset).Find(&decks).Error; err != nil {
		return nil, 0, &PersistenceError{Op: "list decks", Err: err}
	}
	return decks, total, nil
}
