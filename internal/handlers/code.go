package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/nasubi-dev/artsdeck/internal/httpx"
	"github.com/nasubi-dev/artsdeck/internal/services"
)

type CodeHandler struct {
	DB      *gorm.DB
	Decks   *services.DeckService
	history *HistoryHandler // reuse its ownership helpers
}

func NewCodeHandler(db *gorm.DB, decks *services.DeckService) *CodeHandler {
	return &CodeHandler{DB: db, Decks: decks, history: NewHistoryHandler(db, decks)}
}

// Update replaces the code string attached to a history. Unchanged strings
// are a no-op and never hit the image service.
func (h *CodeHandler) Update(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_form", nil)
		return
	}
	historyID64, _ := strconv.Atoi(r.FormValue("history_id"))
	historyID := uint(historyID64)
	deckID := h.history.deckIDOfHistory(historyID)
	if !h.history.ownsDeck(r, deckID) {
		httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
		return
	}
	back := "/decks/show?id=" + strconv.FormatUint(uint64(deckID), 10)
	code := strings.TrimSpace(r.FormValue("code"))
	if err := h.Decks.UpdateDeckCode(r.Context(), historyID, code); err != nil {
		writeServiceError(w, r, err, back)
		return
	}
	if httpx.WantsHTML(r) {
		httpx.Flash(w, "code_saved")
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"history_id": historyID})
}

// Promote makes the code attached to a history the deck's sole main code.
func (h *CodeHandler) Promote(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_form", nil)
		return
	}
	historyID64, _ := strconv.Atoi(r.FormValue("history_id"))
	historyID := uint(historyID64)
	deckID := h.history.deckIDOfHistory(historyID)
	if !h.history.ownsDeck(r, deckID) {
		httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
		return
	}
	back := "/decks/show?id=" + strconv.FormatUint(uint64(deckID), 10)
	if err := h.Decks.PromoteCodeToMain(r.Context(), deckID, historyID); err != nil {
		writeServiceError(w, r, err, back)
		return
	}
	if httpx.WantsHTML(r) {
		httpx.Flash(w, "code_promoted")
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deck_id": deckID, "history_id": historyID})
}
