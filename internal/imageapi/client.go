// Package imageapi talks to the external deck-image microservice: synchronous
// deck rendering (development), publish notifications (production) and user
// image uploads. Calls are plain blocking requests with no retry; callers
// bound them with the injected http.Client's timeout.
package imageapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
)

// PlaceholderImageURL is stored on freshly-created production deck codes until
// the rendered image arrives out of band.
const PlaceholderImageURL = "https://storage.googleapis.com/artsdeck-assets/deck-placeholder.png"

type Client struct {
	BaseURL string
	AuthKey string // sent as X-Auth-Key on uploads
	HTTP    *http.Client
}

func New(baseURL, authKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{BaseURL: baseURL, AuthKey: authKey, HTTP: httpClient}
}

// FetchDeckImage renders a deck code synchronously (development path).
// Blocks until the service returns the rendered image URL.
func (c *Client) FetchDeckImage(ctx context.Context, deckCode string, deckID uint) (string, error) {
	payload, err := json.Marshal(map[string]any{"deckCode": deckCode, "deckId": deckID})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/dev_fetchDeck", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("dev_fetchDeck request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("dev_fetchDeck status %d", resp.StatusCode)
	}
	var out struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("dev_fetchDeck decode: %w", err)
	}
	if out.URL == "" {
		return "", fmt.Errorf("dev_fetchDeck returned empty url")
	}
	return out.URL, nil
}

// Publish notifies the pub-sub endpoint that a deck code needs rendering
// (production path). Any 2xx is success; the rendered image arrives later
// through a channel outside this client.
func (c *Client) Publish(ctx context.Context, deckCodeID uint, deckCode string) error {
	payload, err := json.Marshal(map[string]any{"deckCodeId": deckCodeID, "code": deckCode})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/publish", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("publish request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("publish status %d", resp.StatusCode)
	}
	return nil
}

type UploadResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	URL     string `json:"url"`
}

// Upload sends a user image as multipart form data with the X-Auth-Key header.
func (c *Client) Upload(ctx context.Context, filename string, file io.Reader) (*UploadResult, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", filename)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/upload", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-Auth-Key", c.AuthKey)
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("upload status %d", resp.StatusCode)
	}
	var out UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("upload decode: %w", err)
	}
	if !out.Success {
		return nil, fmt.Errorf("upload rejected: %s", out.Message)
	}
	return &out, nil
}
