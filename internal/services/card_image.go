package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nasubi-dev/artsdeck/internal/imageapi"
	"github.com/nasubi-dev/artsdeck/internal/models"
)

// ImageUploader is the upload slice of the image microservice.
// Satisfied by *imageapi.Client.
type ImageUploader interface {
	Upload(ctx context.Context, filename string, file io.Reader) (*imageapi.UploadResult, error)
}

// allowedImageTypes is the sniffed MIME allowlist for uploads.
var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
}

// CardImageService stores user-uploaded images through the external upload
// service and records them for reuse as avatars or history attachments.
type CardImageService struct {
	DB       *gorm.DB
	Uploader ImageUploader
}

func NewCardImageService(db *gorm.DB, up ImageUploader) *CardImageService {
	return &CardImageService{DB: db, Uploader: up}
}

// Create sniffs the file's real content type from its first bytes, rejects
// anything outside the allowlist, uploads under a random name and records the
// returned URL.
func (s *CardImageService) Create(ctx context.Context, userID uint, file io.ReadSeeker) (*models.CardImage, error) {
	if userID == 0 {
		return nil, &ValidationError{Field: "userId", Reason: "required"}
	}
	buf := make([]byte, 512)
	n, err := file.Read(buf)
	if err != nil && err != io.EOF {
		return nil, &ValidationError{Field: "image", Reason: "unreadable"}
	}
	contentType := http.DetectContentType(buf[:n])
	// strip e.g. "; charset=" suffixes before lookup
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}
	ext, ok := allowedImageTypes[contentType]
	if !ok {
		return nil, &ValidationError{Field: "image", Reason: "unsupported_type"}
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, &ValidationError{Field: "image", Reason: "unreadable"}
	}

	name := uuid.NewString() + ext
	res, err := s.Uploader.Upload(ctx, name, file)
	if err != nil {
		return nil, &ExternalServiceError{Op: "upload image", Err: err}
	}

	img := models.CardImage{UserID: userID, ImageURL: res.URL}
	if err := s.DB.WithContext(ctx).Create(&img).Error; err != nil {
		return nil, &PersistenceError{Op: "create card image", Err: err}
	}
	return &img, nil
}

// List returns a page of the user's images, newest first.
func (s *CardImageService) List(ctx context.Context, userID uint, limit, offset int) ([]models.CardImage, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	var images []models.CardImage
	err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Limit(limit).Offset(offset).
		Find(&images).Error
	if err != nil {
		return nil, &PersistenceError{Op: "list card images", Err: err}
	}
	return images, nil
}

// Get loads one image, checking ownership.
func (s *CardImageService) Get(ctx context.Context, userID, imageID uint) (*models.CardImage, error) {
	var img models.CardImage
	err := s.DB.WithContext(ctx).Where("id = ? AND user_id = ?", imageID, userID).First(&img).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &PersistenceError{Op: "load card image", Err: err}
	}
	return &img, nil
}
