package server

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"gorm.io/gorm"

	"github.com/nasubi-dev/artsdeck/internal/auth"
	"github.com/nasubi-dev/artsdeck/internal/handlers"
	"github.com/nasubi-dev/artsdeck/internal/httpx"
	"github.com/nasubi-dev/artsdeck/internal/middleware"
	"github.com/nasubi-dev/artsdeck/internal/models"
	"github.com/nasubi-dev/artsdeck/internal/services"
	"github.com/nasubi-dev/artsdeck/internal/view"
)

// Deps carries everything the router needs, constructed once in cmd/server.
type Deps struct {
	DB       *gorm.DB
	Sessions *auth.Sessions
	Google   *auth.GoogleProvider // nil disables the OAuth routes
	Decks    *services.DeckService
	Images   *services.CardImageService
}

// New constructs the root http.Handler with all routes and middlewares applied.
func New(d Deps) http.Handler {
	mux := http.NewServeMux()

	// RequireAuth verifies the session's user still exists.
	d.Sessions.SetUserVerifier(func(_ context.Context, uid uint) bool {
		var count int64
		if err := d.DB.Model(&models.User{}).Where("id = ?", uid).Limit(1).Count(&count).Error; err != nil {
			return false
		}
		return count > 0
	})

	// --- Health endpoints ---
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if err := d.DB.Exec("SELECT 1").Error; err != nil {
			httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	authHandler := handlers.NewAuthHandler(d.DB, d.Sessions, d.Google)
	authHandler.Register(mux)

	protect := func(h http.HandlerFunc) http.Handler {
		return d.Sessions.Middleware(d.Sessions.RequireAuth(h))
	}

	dh := handlers.NewDeckHandler(d.Decks)
	mux.Handle("/decks", protect(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			dh.List(w, r)
		case http.MethodPost:
			dh.Create(w, r)
		default:
			w.Header().Set("Allow", "GET,POST")
			httpx.JSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		}
	}))
	mux.Handle("/decks/show", protect(dh.Show))
	mux.Handle("/decks/delete", protect(dh.Delete))

	hh := handlers.NewHistoryHandler(d.DB, d.Decks)
	mux.Handle("/histories", protect(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", "POST")
			httpx.JSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
			return
		}
		hh.Create(w, r)
	}))
	mux.Handle("/histories/update", protect(hh.Update))
	mux.Handle("/histories/delete", protect(hh.Delete))

	ch := handlers.NewCodeHandler(d.DB, d.Decks)
	mux.Handle("/codes/update", protect(ch.Update))
	mux.Handle("/codes/promote", protect(ch.Promote))

	ih := handlers.NewCardImageHandler(d.Images)
	mux.Handle("/images", protect(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			ih.List(w, r)
		case http.MethodPost:
			ih.Upload(w, r)
		default:
			w.Header().Set("Allow", "GET,POST")
			httpx.JSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		}
	}))

	ph := handlers.NewProfileHandler(d.DB, d.Images)
	mux.Handle("/profile", protect(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			ph.Show(w, r)
		case http.MethodPost:
			ph.Update(w, r)
		default:
			w.Header().Set("Allow", "GET,POST")
			httpx.JSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		}
	}))
	mux.Handle("/profile/password", protect(ph.ChangePassword))

	// Static assets (CSS). Long cache outside DEV.
	fs := http.FileServer(http.Dir("static"))
	mux.Handle("/static/", http.StripPrefix("/static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if os.Getenv("DEV") != "1" {
			w.Header().Set("Cache-Control", "public, max-age=86400")
		} else {
			w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		}
		fs.ServeHTTP(w, r)
	})))

	// Landing page: recent decks across all users, signed-in or not.
	mux.Handle("/", d.Sessions.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		data := map[string]any{"Flash": httpx.PopFlash(w, r)}
		if uid, ok := auth.UserIDFromContext(r.Context()); ok && uid != 0 {
			var user models.User
			if err := d.DB.First(&user, uid).Error; err == nil {
				data["User"] = user
			}
		}
		var recent []models.Deck
		d.DB.Preload("User").Order("created_at desc").Limit(12).Find(&recent)
		data["RecentDecks"] = recent
		if err := view.Render(w, r, "index.html", data); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			if _, werr := w.Write([]byte("render error")); werr != nil {
				_ = werr
			}
		}
	})))

	view.SetThemeResolver(middleware.ThemeFrom)
	return middleware.Theme(withRecover(withLogging(mux)))
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}

func withRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
