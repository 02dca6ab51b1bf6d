package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/nasubi-dev/artsdeck/internal/auth"
	"github.com/nasubi-dev/artsdeck/internal/config"
	"github.com/nasubi-dev/artsdeck/internal/models"
	"github.com/nasubi-dev/artsdeck/internal/services"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Deck{}, &models.DeckHistory{}, &models.DeckCode{}, &models.CardImage{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type stubImageAPI struct{ fetchURL string }

func (s stubImageAPI) FetchDeckImage(_ context.Context, _ string, _ uint) (string, error) {
	return s.fetchURL, nil
}
func (s stubImageAPI) Publish(_ context.Context, _ uint, _ string) error { return nil }

func seedHandlerUser(t *testing.T, db *gorm.DB, email string) models.User {
	t.Helper()
	u := models.User{Email: email, Name: "Tester"}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func asUser(req *http.Request, uid uint) *http.Request {
	return req.WithContext(auth.WithUserID(req.Context(), uid))
}

func TestDeckCreateAndListJSON(t *testing.T) {
	db := setupTestDB(t)
	u := seedHandlerUser(t, db, "u@test")
	svc := services.NewDeckService(db, stubImageAPI{fetchURL: "http://img/x.png"}, config.Development)
	h := NewDeckHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/decks", strings.NewReader(`{"title":"My Deck","code":"ABC123"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req = asUser(req, u.ID)
	w := httptest.NewRecorder()
	h.Create(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", w.Code, w.Body.String())
	}

	req2 := httptest.NewRequest(http.MethodGet, "/decks", nil)
	req2.Header.Set("Accept", "application/json")
	req2 = asUser(req2, u.ID)
	w2 := httptest.NewRecorder()
	h.List(w2, req2)
	if w2.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", w2.Code)
	}
	var payload struct {
		Items []models.Deck `json:"items"`
		Total int64         `json:"total"`
	}
	if err := json.Unmarshal(w2.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Total != 1 || len(payload.Items) != 1 || payload.Items[0].Title != "My Deck" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestDeckCreateValidationJSON(t *testing.T) {
	db := setupTestDB(t)
	u := seedHandlerUser(t, db, "u@test")
	svc := services.NewDeckService(db, stubImageAPI{}, config.Development)
	h := NewDeckHandler(svc)

	// missing code
	req := httptest.NewRequest(http.MethodPost, "/decks", strings.NewReader(`{"title":"T"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req = asUser(req, u.ID)
	w := httptest.NewRecorder()
	h.Create(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "code") {
		t.Fatalf("expected violation naming code: %s", w.Body.String())
	}
}

func TestDeckShowForbiddenForStranger(t *testing.T) {
	db := setupTestDB(t)
	owner := seedHandlerUser(t, db, "owner@test")
	stranger := seedHandlerUser(t, db, "stranger@test")
	deck := models.Deck{UserID: owner.ID, Title: "Private"}
	if err := db.Create(&deck).Error; err != nil {
		t.Fatalf("seed deck: %v", err)
	}
	svc := services.NewDeckService(db, stubImageAPI{}, config.Development)
	h := NewDeckHandler(svc)

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/decks/show?id=%d", deck.ID), nil)
	req.Header.Set("Accept", "application/json")
	req = asUser(req, stranger.ID)
	w := httptest.NewRecorder()
	h.Show(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", w.Code)
	}
}

func TestDeckDeleteFormPath(t *testing.T) {
	db := setupTestDB(t)
	u := seedHandlerUser(t, db, "u@test")
	deck := models.Deck{UserID: u.ID, Title: "Doomed"}
	if err := db.Create(&deck).Error; err != nil {
		t.Fatalf("seed deck: %v", err)
	}
	svc := services.NewDeckService(db, stubImageAPI{}, config.Development)
	h := NewDeckHandler(svc)

	form := url.Values{"id": {fmt.Sprint(deck.ID)}}
	req := httptest.NewRequest(http.MethodPost, "/decks/delete", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req = asUser(req, u.ID)
	w := httptest.NewRecorder()
	h.Delete(w, req)
	if w.Code != http.StatusSeeOther {
		t.Fatalf("expected 303 got %d", w.Code)
	}
	var count int64
	db.Model(&models.Deck{}).Count(&count)
	if count != 0 {
		t.Fatalf("deck not deleted")
	}
}

func TestHistoryCreateWithCodePromotes(t *testing.T) {
	db := setupTestDB(t)
	u := seedHandlerUser(t, db, "u@test")
	deck := models.Deck{UserID: u.ID, Title: "D"}
	if err := db.Create(&deck).Error; err != nil {
		t.Fatalf("seed deck: %v", err)
	}
	svc := services.NewDeckService(db, stubImageAPI{fetchURL: "http://img/a.png"}, config.Development)
	hh := NewHistoryHandler(db, svc)

	form := url.Values{
		"deck_id":  {fmt.Sprint(deck.ID)},
		"status":   {"main"},
		"code":     {"NEWCODE"},
		"is_first": {"on"},
	}
	req := httptest.NewRequest(http.MethodPost, "/histories", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req = asUser(req, u.ID)
	w := httptest.NewRecorder()
	hh.Create(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", w.Code, w.Body.String())
	}
	var mains int64
	db.Model(&models.DeckCode{}).Where("deck_id = ? AND status = ?", deck.ID, models.StatusMain).Count(&mains)
	if mains != 1 {
		t.Fatalf("expected one main code, got %d", mains)
	}
}

func TestCodePromoteHandler(t *testing.T) {
	db := setupTestDB(t)
	u := seedHandlerUser(t, db, "u@test")
	deck := models.Deck{UserID: u.ID, Title: "D"}
	if err := db.Create(&deck).Error; err != nil {
		t.Fatalf("seed deck: %v", err)
	}
	var hists []models.DeckHistory
	for i, status := range []string{models.StatusMain, models.StatusSub} {
		h := models.DeckHistory{DeckID: deck.ID, Status: models.StatusMain, Content: fmt.Sprint(i)}
		if err := db.Create(&h).Error; err != nil {
			t.Fatalf("seed history: %v", err)
		}
		hid := h.ID
		if err := db.Create(&models.DeckCode{DeckID: deck.ID, HistoryID: &hid, Code: fmt.Sprint(i), Status: status}).Error; err != nil {
			t.Fatalf("seed code: %v", err)
		}
		hists = append(hists, h)
	}
	svc := services.NewDeckService(db, stubImageAPI{}, config.Development)
	ch := NewCodeHandler(db, svc)

	form := url.Values{"history_id": {fmt.Sprint(hists[1].ID)}}
	req := httptest.NewRequest(http.MethodPost, "/codes/promote", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req = asUser(req, u.ID)
	w := httptest.NewRecorder()
	ch.Promote(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", w.Code, w.Body.String())
	}
	var main models.DeckCode
	if err := db.Where("deck_id = ? AND status = ?", deck.ID, models.StatusMain).First(&main).Error; err != nil {
		t.Fatalf("load main: %v", err)
	}
	if main.HistoryID == nil || *main.HistoryID != hists[1].ID {
		t.Fatalf("wrong code promoted: %+v", main)
	}
}
