package middleware

import (
	"context"
	"net/http"
)

type ctxKey string

const ctxTheme ctxKey = "pref_theme"

// Theme extracts the theme preference (cookie > query) and stores it in
// context. Query-provided values persist in a cookie for ~30 days.
func Theme(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		theme := "system"
		if c, err := r.Cookie("theme"); err == nil && c.Value != "" {
			theme = c.Value
		}
		if qt := r.URL.Query().Get("theme"); qt != "" {
			theme = qt
			http.SetCookie(w, &http.Cookie{Name: "theme", Value: theme, Path: "/", MaxAge: 86400 * 30})
		}
		if theme != "light" && theme != "dark" {
			theme = "system"
		}
		ctx := context.WithValue(r.Context(), ctxTheme, theme)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ThemeFrom returns the theme preference from context or the default.
func ThemeFrom(r *http.Request) string {
	if v, ok := r.Context().Value(ctxTheme).(string); ok && v != "" {
		return v
	}
	return "system"
}
