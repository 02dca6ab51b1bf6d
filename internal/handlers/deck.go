package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/nasubi-dev/artsdeck/internal/auth"
	"github.com/nasubi-dev/artsdeck/internal/httpx"
	"github.com/nasubi-dev/artsdeck/internal/models"
	"github.com/nasubi-dev/artsdeck/internal/services"
)

type DeckHandler struct {
	Decks *services.DeckService
}

func NewDeckHandler(decks *services.DeckService) *DeckHandler { return &DeckHandler{Decks: decks} }

// List shows the signed-in user's decks, paginated, HTML or JSON.
func (h *DeckHandler) List(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	if uid == 0 {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	pageSize := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			pageSize = n
		}
	}
	offset := 0
	if v := r.URL.Query().Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 1 {
			offset = (n - 1) * pageSize
		}
	}
	decks, total, err := h.Decks.List(r.Context(), uid, pageSize, offset)
	if err != nil {
		writeServiceError(w, r, err, "/")
		return
	}
	if httpx.WantsHTML(r) {
		data := map[string]any{
			"Decks":    decks,
			"Total":    total,
			"PageSize": pageSize,
			"Flash":    httpx.PopFlash(w, r),
		}
		renderTemplate(w, r, "decks", data)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": decks, "total": total, "limit": pageSize, "offset": offset})
}

// Create runs the createDeck workflow from a form or JSON body.
func (h *DeckHandler) Create(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	if uid == 0 {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	in := services.CreateDeckInput{UserID: uid}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var body struct {
			Title        string `json:"title"`
			Description  string `json:"description"`
			Code         string `json:"code"`
			Content      string `json:"content"`
			CardImageURL string `json:"card_image_url"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
			return
		}
		in.Title, in.Description, in.Code = body.Title, body.Description, body.Code
		in.Content, in.CardImageURL = body.Content, body.CardImageURL
	} else {
		if err := r.ParseForm(); err != nil {
			httpx.JSONError(w, http.StatusBadRequest, "invalid_form", nil)
			return
		}
		in.Title = strings.TrimSpace(r.FormValue("title"))
		in.Description = r.FormValue("description")
		in.Code = strings.TrimSpace(r.FormValue("code"))
		in.Content = r.FormValue("content")
		in.CardImageURL = strings.TrimSpace(r.FormValue("card_image_url"))
	}

	deckID, err := h.Decks.CreateDeck(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, err, "/decks")
		return
	}
	if httpx.WantsHTML(r) {
		httpx.Flash(w, "deck_created")
		http.Redirect(w, r, "/decks/show?id="+strconv.FormatUint(uint64(deckID), 10), http.StatusSeeOther)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"id": deckID})
}

// Show renders one deck with its histories and codes.
func (h *DeckHandler) Show(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	id := queryID(r)
	if id == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	deck, err := h.Decks.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, "/decks")
		return
	}
	if deck.UserID != uid {
		httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
		return
	}
	if httpx.WantsHTML(r) {
		// index codes by history for the template; nil entries stay falsy in {{with}}
		codesByHistory := map[uint]*models.DeckCode{}
		for i := range deck.Codes {
			c := &deck.Codes[i]
			if c.HistoryID != nil {
				codesByHistory[*c.HistoryID] = c
			}
		}
		renderTemplate(w, r, "deck_detail", map[string]any{
			"Deck":           deck,
			"CodesByHistory": codesByHistory,
			"Flash":          httpx.PopFlash(w, r),
		})
		return
	}
	httpx.JSON(w, http.StatusOK, deck)
}

// Delete cascades codes, then histories, then the deck itself.
func (h *DeckHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodDelete {
		httpx.JSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}
	uid, _ := auth.UserIDFromContext(r.Context())
	id := queryID(r)
	if id == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	deck, err := h.Decks.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, "/decks")
		return
	}
	if deck.UserID != uid {
		httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
		return
	}
	if err := h.Decks.DeleteDeck(r.Context(), id); err != nil {
		writeServiceError(w, r, err, "/decks")
		return
	}
	if httpx.WantsHTML(r) {
		httpx.Flash(w, "deck_deleted")
		http.Redirect(w, r, "/decks", http.StatusSeeOther)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": id})
}

// queryID reads an id from query or form value.
func queryID(r *http.Request) uint {
	idStr := r.URL.Query().Get("id")
	if idStr == "" {
		idStr = r.FormValue("id")
	}
	id, _ := strconv.Atoi(idStr)
	if id <= 0 {
		return 0
	}
	return uint(id)
}
