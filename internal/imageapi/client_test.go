package imageapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchDeckImage(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/dev_fetchDeck", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(map[string]string{"url": "http://img/rendered.png"})
	}))
	defer srv.Close()

	c := New(srv.URL, "", srv.Client())
	url, err := c.FetchDeckImage(context.Background(), "ABC123", 7)
	require.NoError(t, err)
	assert.Equal(t, "http://img/rendered.png", url)
	assert.Equal(t, "ABC123", gotBody["deckCode"])
	assert.Equal(t, float64(7), gotBody["deckId"])
}

func TestFetchDeckImageNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, "", srv.Client())
	_, err := c.FetchDeckImage(context.Background(), "ABC", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestFetchDeckImageEmptyURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"url": ""})
	}))
	defer srv.Close()

	c := New(srv.URL, "", srv.Client())
	_, err := c.FetchDeckImage(context.Background(), "ABC", 1)
	require.Error(t, err)
}

func TestPublish(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/publish", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusAccepted) // any 2xx counts
	}))
	defer srv.Close()

	c := New(srv.URL, "", srv.Client())
	require.NoError(t, c.Publish(context.Background(), 42, "ABC"))
	assert.Equal(t, float64(42), gotBody["deckCodeId"])
	assert.Equal(t, "ABC", gotBody["code"])
}

func TestPublishFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(srv.URL, "", srv.Client())
	err := c.Publish(context.Background(), 1, "ABC")
	require.Error(t, err)
}

func TestUpload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/upload", r.URL.Path)
		require.Equal(t, "secret-key", r.Header.Get("X-Auth-Key"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		f, fh, err := r.FormFile("image")
		require.NoError(t, err)
		defer f.Close()
		assert.Equal(t, "pic.png", fh.Filename)
		_ = json.NewEncoder(w).Encode(UploadResult{Success: true, Message: "ok", URL: "http://cdn/pic.png"})
	}))
	defer srv.Close()

	c := New(srv.URL, "secret-key", srv.Client())
	res, err := c.Upload(context.Background(), "pic.png", strings.NewReader("fake image bytes"))
	require.NoError(t, err)
	assert.Equal(t, "http://cdn/pic.png", res.URL)
}

func TestUploadRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(UploadResult{Success: false, Message: "bad key"})
	}))
	defer srv.Close()

	c := New(srv.URL, "wrong", srv.Client())
	_, err := c.Upload(context.Background(), "pic.png", strings.NewReader("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad key")
}

func TestContextCancellation(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	c := New(srv.URL, "", srv.Client())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.FetchDeckImage(ctx, "ABC", 1)
	require.Error(t, err)
}
