// Package view renders server-side HTML templates with a shared layout.
// Parsed templates are cached per page; set DEV=1 to re-parse on every
// request while editing templates.
package view

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var (
	baseDir  string
	baseOnce sync.Once
	tplCache = struct {
		sync.RWMutex
		m map[string]*template.Template
	}{m: map[string]*template.Template{}}

	themeResolver = func(_ *http.Request) string { return "system" }
)

// SetThemeResolver lets the host app surface the theme preference to templates.
func SetThemeResolver(f func(*http.Request) string) {
	if f != nil {
		themeResolver = f
	}
}

// resolveBaseDir finds the templates directory whether the binary runs from
// the repo root or a subdirectory such as cmd/server.
func resolveBaseDir() string {
	baseOnce.Do(func() {
		for _, c := range []string{"templates", "../templates", "../../templates"} {
			if fi, err := os.Stat(filepath.Clean(c)); err == nil && fi.IsDir() {
				baseDir = filepath.Clean(c)
				return
			}
		}
		baseDir = "templates"
	})
	return baseDir
}

var funcs = template.FuncMap{
	"year": func() int { return time.Now().Year() },
}

func load(name string) (*template.Template, error) {
	dev := os.Getenv("DEV") == "1"
	if !dev {
		tplCache.RLock()
		t, ok := tplCache.m[name]
		tplCache.RUnlock()
		if ok {
			return t, nil
		}
	}
	dir := resolveBaseDir()
	t, err := template.New("layout.html").Funcs(funcs).ParseFiles(
		filepath.Join(dir, "layout.html"),
		filepath.Join(dir, name),
	)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	if !dev {
		tplCache.Lock()
		tplCache.m[name] = t
		tplCache.Unlock()
	}
	return t, nil
}

// Render executes the named page template inside the layout. The page renders
// into a buffer first so a template error never produces a half-written body.
// The resolved theme preference is injected into the data map as "Theme".
func Render(w http.ResponseWriter, r *http.Request, name string, data map[string]any) error {
	t, err := load(name)
	if err != nil {
		return err
	}
	if data == nil {
		data = map[string]any{}
	}
	if _, ok := data["Theme"]; !ok {
		data["Theme"] = themeResolver(r)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout.html", data); err != nil {
		return fmt.Errorf("execute %s: %w", name, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err = buf.WriteTo(w)
	return err
}
