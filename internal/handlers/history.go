package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/nasubi-dev/artsdeck/internal/auth"
	"github.com/nasubi-dev/artsdeck/internal/httpx"
	"github.com/nasubi-dev/artsdeck/internal/models"
	"github.com/nasubi-dev/artsdeck/internal/services"
)

type HistoryHandler struct {
	DB    *gorm.DB
	Decks *services.DeckService
}

func NewHistoryHandler(db *gorm.DB, decks *services.DeckService) *HistoryHandler {
	return &HistoryHandler{DB: db, Decks: decks}
}

// ownsDeck checks that the signed-in user owns the deck the mutation targets.
func (h *HistoryHandler) ownsDeck(r *http.Request, deckID uint) bool {
	uid, _ := auth.UserIDFromContext(r.Context())
	if uid == 0 || deckID == 0 {
		return false
	}
	var count int64
	if err := h.DB.Model(&models.Deck{}).Where("id = ? AND user_id = ?", deckID, uid).Limit(1).Count(&count).Error; err != nil {
		return false
	}
	return count > 0
}

// deckIDOfHistory resolves a history back to its deck for ownership checks.
func (h *HistoryHandler) deckIDOfHistory(historyID uint) uint {
	var hist models.DeckHistory
	if err := h.DB.Select("deck_id").First(&hist, historyID).Error; err != nil {
		return 0
	}
	return hist.DeckID
}

// Create adds a history entry (and optionally a code) to a deck.
func (h *HistoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_form", nil)
		return
	}
	deckID64, _ := strconv.Atoi(r.FormValue("deck_id"))
	deckID := uint(deckID64)
	if !h.ownsDeck(r, deckID) {
		httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
		return
	}
	back := "/decks/show?id=" + strconv.FormatUint(uint64(deckID), 10)
	in := services.CreateHistoryInput{
		Status:       strings.TrimSpace(r.FormValue("status")),
		Content:      r.FormValue("content"),
		CardImageURL: strings.TrimSpace(r.FormValue("card_image_url")),
		Code:         strings.TrimSpace(r.FormValue("code")),
		IsFirst:      r.FormValue("is_first"),
	}
	if _, err := h.Decks.CreateDeckHistory(r.Context(), deckID, in); err != nil {
		writeServiceError(w, r, err, back)
		return
	}
	if httpx.WantsHTML(r) {
		httpx.Flash(w, "history_created")
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"deck_id": deckID})
}

// Update edits a history in place.
func (h *HistoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_form", nil)
		return
	}
	historyID := queryID(r)
	deckID := h.deckIDOfHistory(historyID)
	if !h.ownsDeck(r, deckID) {
		httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
		return
	}
	back := "/decks/show?id=" + strconv.FormatUint(uint64(deckID), 10)
	in := services.UpdateHistoryInput{
		Status:       strings.TrimSpace(r.FormValue("status")),
		Content:      r.FormValue("content"),
		CardImageURL: strings.TrimSpace(r.FormValue("card_image_url")),
	}
	if err := h.Decks.UpdateDeckHistory(r.Context(), historyID, in); err != nil {
		writeServiceError(w, r, err, back)
		return
	}
	if httpx.WantsHTML(r) {
		httpx.Flash(w, "history_updated")
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"updated": historyID})
}

// Delete removes a history and the codes attached to it.
func (h *HistoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodDelete {
		httpx.JSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}
	historyID := queryID(r)
	deckID := h.deckIDOfHistory(historyID)
	if !h.ownsDeck(r, deckID) {
		httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
		return
	}
	back := "/decks/show?id=" + strconv.FormatUint(uint64(deckID), 10)
	if err := h.Decks.DeleteDeckHistory(r.Context(), historyID); err != nil {
		writeServiceError(w, r, err, back)
		return
	}
	if httpx.WantsHTML(r) {
		httpx.Flash(w, "history_deleted")
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": historyID})
}
