package handlers

import (
	"net/http"

	"github.com/nasubi-dev/artsdeck/internal/auth"
	"github.com/nasubi-dev/artsdeck/internal/httpx"
	"github.com/nasubi-dev/artsdeck/internal/services"
)

// maxUploadBytes caps the multipart memory buffer for image uploads.
const maxUploadBytes = 10 << 20

type CardImageHandler struct {
	Images *services.CardImageService
}

func NewCardImageHandler(images *services.CardImageService) *CardImageHandler {
	return &CardImageHandler{Images: images}
}

// List shows the user's uploaded images for reuse as avatar or attachment.
func (h *CardImageHandler) List(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	if uid == 0 {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	images, err := h.Images.List(r.Context(), uid, 50, 0)
	if err != nil {
		writeServiceError(w, r, err, "/decks")
		return
	}
	if httpx.WantsHTML(r) {
		renderTemplate(w, r, "images", map[string]any{
			"Images": images,
			"Flash":  httpx.PopFlash(w, r),
		})
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": images})
}

// Upload accepts a multipart image, sniffs its type and forwards it to the
// external upload service.
func (h *CardImageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	if uid == 0 {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_multipart", nil)
		return
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "missing_image", nil)
		return
	}
	defer file.Close()

	img, err := h.Images.Create(r.Context(), uid, file)
	if err != nil {
		writeServiceError(w, r, err, "/images")
		return
	}
	if httpx.WantsHTML(r) {
		httpx.Flash(w, "image_uploaded")
		http.Redirect(w, r, "/images", http.StatusSeeOther)
		return
	}
	httpx.JSON(w, http.StatusCreated, img)
}
