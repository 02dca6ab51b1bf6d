package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/nasubi-dev/artsdeck/internal/auth"
	"github.com/nasubi-dev/artsdeck/internal/httpx"
	"github.com/nasubi-dev/artsdeck/internal/models"
	"github.com/nasubi-dev/artsdeck/internal/view"
)

// Explicit constant for 303 See Other (Post/Redirect/Get)
const statusSeeOther = 303

const oauthStateCookie = "oauth_state"

type AuthHandler struct {
	DB       *gorm.DB
	Sessions *auth.Sessions
	Google   *auth.GoogleProvider // nil when OAuth is not configured
}

func NewAuthHandler(db *gorm.DB, sessions *auth.Sessions, google *auth.GoogleProvider) *AuthHandler {
	return &AuthHandler{DB: db, Sessions: sessions, Google: google}
}

func (h *AuthHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/login", h.login)
	mux.HandleFunc("/logout", h.logout)
	mux.HandleFunc("/auth/google", h.googleStart)
	mux.HandleFunc("/auth/google/callback", h.googleCallback)
}

// renderTemplate uses the shared view.Render to ensure layout, funcs, and caching.
func renderTemplate(w http.ResponseWriter, r *http.Request, name string, data map[string]any) {
	if err := view.Render(w, r, name+".html", data); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		if _, werr := w.Write([]byte("template error")); werr != nil {
			_ = werr
		}
	}
}

// login serves the login page and the local email/password fallback used in
// development. Google OAuth is the primary path.
func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		if uid, ok := h.Sessions.Parse(r); ok && uid != 0 {
			var count int64
			if err := h.DB.Model(&models.User{}).Where("id = ?", uid).Limit(1).Count(&count).Error; err == nil && count > 0 {
				http.Redirect(w, r, "/decks", http.StatusSeeOther)
				return
			}
			// Stale session: clear and continue to render login
			h.Sessions.Clear(w)
		}
		renderTemplate(w, r, "login", map[string]any{"GoogleEnabled": h.Google != nil})
		return
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "GET,POST")
		httpx.JSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}
	if err := r.ParseForm(); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_form", nil)
		return
	}
	email := strings.TrimSpace(r.FormValue("email"))
	pass := r.FormValue("password")
	if email == "" || pass == "" {
		renderTemplate(w, r, "login", map[string]any{"Error": "email and password required", "GoogleEnabled": h.Google != nil})
		return
	}
	var user models.User
	if err := h.DB.Where("email = ?", email).First(&user).Error; err != nil {
		renderTemplate(w, r, "login", map[string]any{"Error": "invalid credentials", "GoogleEnabled": h.Google != nil})
		return
	}
	if user.Password == "" || bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(pass)) != nil {
		renderTemplate(w, r, "login", map[string]any{"Error": "invalid credentials", "GoogleEnabled": h.Google != nil})
		return
	}
	h.Sessions.Create(w, user.ID)
	http.Redirect(w, r, "/decks", statusSeeOther)
}

// googleStart redirects to the consent screen with a one-shot state cookie.
func (h *AuthHandler) googleStart(w http.ResponseWriter, r *http.Request) {
	if h.Google == nil {
		httpx.JSONError(w, http.StatusNotFound, "oauth_not_configured", nil)
		return
	}
	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(10 * time.Minute),
	})
	http.Redirect(w, r, h.Google.AuthURL(state), http.StatusSeeOther)
}

// googleCallback exchanges the code, then finds or creates the local user.
// First external-auth login creates the User row (spec: no signup page for OAuth).
func (h *AuthHandler) googleCallback(w http.ResponseWriter, r *http.Request) {
	if h.Google == nil {
		httpx.JSONError(w, http.StatusNotFound, "oauth_not_configured", nil)
		return
	}
	c, err := r.Cookie(oauthStateCookie)
	if err != nil || c.Value == "" || c.Value != r.URL.Query().Get("state") {
		httpx.JSONError(w, http.StatusBadRequest, "state_mismatch", nil)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: oauthStateCookie, Value: "", Path: "/", Expires: time.Unix(0, 0), MaxAge: -1})
	code := r.URL.Query().Get("code")
	if code == "" {
		httpx.JSONError(w, http.StatusBadRequest, "missing_code", nil)
		return
	}
	gu, err := h.Google.Exchange(r.Context(), code)
	if err != nil {
		httpx.JSONError(w, http.StatusBadGateway, "oauth_exchange_failed", nil)
		return
	}
	var user models.User
	err = h.DB.Where("google_id = ?", gu.Sub).First(&user).Error
	if err == gorm.ErrRecordNotFound {
		user = models.User{GoogleID: gu.Sub, Email: gu.Email, Name: gu.Name, AvatarURL: gu.Picture}
		if err := h.DB.Create(&user).Error; err != nil {
			httpx.JSONError(w, http.StatusInternalServerError, "user_create_failed", nil)
			return
		}
	} else if err != nil {
		httpx.JSONError(w, http.StatusInternalServerError, "user_lookup_failed", nil)
		return
	}
	h.Sessions.Create(w, user.ID)
	http.Redirect(w, r, "/decks", statusSeeOther)
}

func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	h.Sessions.Clear(w)
	http.Redirect(w, r, "/", statusSeeOther)
}
