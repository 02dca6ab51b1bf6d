package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/nasubi-dev/artsdeck/internal/imageapi"
	"github.com/nasubi-dev/artsdeck/internal/models"
)

type fakeUploader struct {
	url      string
	err      error
	calls    int
	lastName string
}

func (f *fakeUploader) Upload(_ context.Context, filename string, _ io.Reader) (*imageapi.UploadResult, error) {
	f.calls++
	f.lastName = filename
	if f.err != nil {
		return nil, f.err
	}
	return &imageapi.UploadResult{Success: true, URL: f.url}, nil
}

// pngHeader is enough of a real PNG for http.DetectContentType.
var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 13, 'I', 'H', 'D', 'R'}

func TestCardImageCreate(t *testing.T) {
	db := setupTestDB(t)
	u := seedUser(t, db)
	up := &fakeUploader{url: "http://cdn/img/abc.png"}
	svc := NewCardImageService(db, up)

	img, err := svc.Create(context.Background(), u.ID, bytes.NewReader(pngHeader))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if img.ImageURL != "http://cdn/img/abc.png" || img.UserID != u.ID {
		t.Fatalf("unexpected image row: %+v", img)
	}
	if !strings.HasSuffix(up.lastName, ".png") {
		t.Fatalf("expected .png upload name, got %q", up.lastName)
	}
	var count int64
	db.Model(&models.CardImage{}).Count(&count)
	if count != 1 {
		t.Fatalf("expected one row, got %d", count)
	}
}

func TestCardImageCreateRejectsNonImage(t *testing.T) {
	db := setupTestDB(t)
	u := seedUser(t, db)
	up := &fakeUploader{url: "http://cdn/x"}
	svc := NewCardImageService(db, up)

	_, err := svc.Create(context.Background(), u.ID, strings.NewReader("#!/bin/sh\nrm -rf /\n"))
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if up.calls != 0 {
		t.Fatalf("rejected file must never reach the uploader")
	}
	var count int64
	db.Model(&models.CardImage{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected no row, got %d", count)
	}
}

func TestCardImageCreateUploadFailure(t *testing.T) {
	db := setupTestDB(t)
	u := seedUser(t, db)
	up := &fakeUploader{err: errors.New("service down")}
	svc := NewCardImageService(db, up)

	_, err := svc.Create(context.Background(), u.ID, bytes.NewReader(pngHeader))
	var ee *ExternalServiceError
	if !errors.As(err, &ee) {
		t.Fatalf("expected ExternalServiceError, got %v", err)
	}
	var count int64
	db.Model(&models.CardImage{}).Count(&count)
	if count != 0 {
		t.Fatalf("no row may be written on upload failure, got %d", count)
	}
}

func TestCardImageListAndGetOwnership(t *testing.T) {
	db := setupTestDB(t)
	owner := seedUser(t, db)
	stranger := models.User{Email: "other@test", Name: "Other"}
	if err := db.Create(&stranger).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	img := models.CardImage{UserID: owner.ID, ImageURL: "http://cdn/1.png"}
	if err := db.Create(&img).Error; err != nil {
		t.Fatalf("seed image: %v", err)
	}
	svc := NewCardImageService(db, &fakeUploader{})

	imgs, err := svc.List(context.Background(), owner.ID, 10, 0)
	if err != nil || len(imgs) != 1 {
		t.Fatalf("list: err=%v len=%d", err, len(imgs))
	}
	if _, err := svc.Get(context.Background(), stranger.ID, img.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign image, got %v", err)
	}
}
