package photo

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageUpload(t *testing.T) {
	dir := t.TempDir()
	s := NewLocalStorage(dir, "http://localhost:8080/photos/")

	url, err := s.Upload(context.Background(), strings.NewReader("jpeg bytes"), "image/jpeg")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "http://localhost:8080/photos/itemImages/"), url)
	assert.True(t, strings.HasSuffix(url, ".jpg"))

	name := filepath.Base(url)
	data, err := os.ReadFile(filepath.Join(dir, Folder, name))
	require.NoError(t, err)
	assert.Equal(t, "jpeg bytes", string(data))
}

func TestLocalStorageRejects(t *testing.T) {
	dir := t.TempDir()
	s := NewLocalStorage(dir, "http://x")

	_, err := s.Upload(context.Background(), strings.NewReader("gif"), "image/gif")
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = s.Upload(context.Background(), bytes.NewReader(nil), "image/png")
	assert.ErrorIs(t, err, ErrEmpty)

	entries, err := os.ReadDir(filepath.Join(dir, Folder))
	require.NoError(t, err)
	assert.Empty(t, entries, "failed uploads leave no file behind")
}

func TestHandlerServesUploadedPhoto(t *testing.T) {
	dir := t.TempDir()
	s := NewLocalStorage(dir, "")
	url, err := s.Upload(context.Background(), strings.NewReader("png bytes"), "image/png")
	require.NoError(t, err)

	r := chi.NewRouter()
	NewHandler(dir).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/photos" + url)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "png bytes", string(body))
}
