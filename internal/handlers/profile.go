package handlers

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/nasubi-dev/artsdeck/internal/auth"
	"github.com/nasubi-dev/artsdeck/internal/httpx"
	"github.com/nasubi-dev/artsdeck/internal/models"
	"github.com/nasubi-dev/artsdeck/internal/services"
	"github.com/nasubi-dev/artsdeck/internal/validation"
)

type ProfileHandler struct {
	DB     *gorm.DB
	Images *services.CardImageService
}

func NewProfileHandler(db *gorm.DB, images *services.CardImageService) *ProfileHandler {
	return &ProfileHandler{DB: db, Images: images}
}

// Show renders the profile page with the user's images for avatar selection.
func (h *ProfileHandler) Show(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	if uid == 0 {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	var user models.User
	if err := h.DB.First(&user, uid).Error; err != nil {
		httpx.JSONError(w, http.StatusNotFound, "user_not_found", nil)
		return
	}
	images, _ := h.Images.List(r.Context(), uid, 50, 0)
	renderTemplate(w, r, "profile", map[string]any{
		"User":   user,
		"Images": images,
		"Flash":  httpx.PopFlash(w, r),
	})
}

// Update edits nickname, bio and avatar. The avatar must be one of the user's
// own card images (or the provider picture, left unchanged when blank).
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	if uid == 0 {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		httpx.Flash(w, "invalid_form")
		http.Redirect(w, r, "/profile", http.StatusSeeOther)
		return
	}
	var user models.User
	if err := h.DB.First(&user, uid).Error; err != nil {
		httpx.Flash(w, "user_not_found")
		http.Redirect(w, r, "/profile", http.StatusSeeOther)
		return
	}
	nickname := strings.TrimSpace(r.FormValue("nickname"))
	bio := r.FormValue("bio")
	avatarURL := strings.TrimSpace(r.FormValue("avatar_url"))

	v := validation.Violations{}
	validation.Length("nickname", nickname, 0, 100, v)
	validation.URL("avatar_url", avatarURL, v)
	if !v.Empty() {
		field, reason := v.First("nickname", "avatar_url")
		httpx.Flash(w, field+"_"+reason)
		http.Redirect(w, r, "/profile", http.StatusSeeOther)
		return
	}

	user.Nickname = nickname
	user.Bio = bio
	if avatarURL != "" {
		user.AvatarURL = avatarURL
	}
	if err := h.DB.Save(&user).Error; err != nil {
		httpx.Flash(w, "profile_save_failed")
		http.Redirect(w, r, "/profile", http.StatusSeeOther)
		return
	}
	httpx.Flash(w, "profile_saved")
	http.Redirect(w, r, "/profile", http.StatusSeeOther)
}

// ChangePassword handles POST /profile/password for local accounts.
func (h *ProfileHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	if uid == 0 {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		httpx.Flash(w, "invalid_form")
		http.Redirect(w, r, "/profile", http.StatusSeeOther)
		return
	}
	current := r.FormValue("current")
	newPass := r.FormValue("new")
	confirm := r.FormValue("confirm")
	var user models.User
	if err := h.DB.First(&user, uid).Error; err != nil {
		httpx.Flash(w, "user_not_found")
		http.Redirect(w, r, "/profile", http.StatusSeeOther)
		return
	}
	if user.Password == "" {
		// OAuth-only account: no local password to change.
		httpx.Flash(w, "password_not_set")
		http.Redirect(w, r, "/profile", http.StatusSeeOther)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(current)) != nil {
		httpx.Flash(w, "password_current_bad")
		http.Redirect(w, r, "/profile", http.StatusSeeOther)
		return
	}
	if len(newPass) < 8 || newPass != confirm {
		httpx.Flash(w, "password_mismatch")
		http.Redirect(w, r, "/profile", http.StatusSeeOther)
		return
	}
	hash, _ := bcrypt.GenerateFromPassword([]byte(newPass), bcrypt.DefaultCost)
	if err := h.DB.Model(&user).Update("password", string(hash)).Error; err != nil {
		httpx.Flash(w, "password_save_failed")
		http.Redirect(w, r, "/profile", http.StatusSeeOther)
		return
	}
	httpx.Flash(w, "password_saved")
	http.Redirect(w, r, "/profile", http.StatusSeeOther)
}
