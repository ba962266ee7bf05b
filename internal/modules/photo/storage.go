// Package photo stores item photos and hands back the URL the item keeps.
package photo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Folder is the prefix every stored photo lives under.
const Folder = "itemImages"

var (
	ErrEmpty           = errors.New("photo is empty")
	ErrUnsupportedType = errors.New("unsupported photo type")
)

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/heic": ".heic",
}

// Storage is the photo storage collaborator.
type Storage interface {
	// Upload stores the blob under a generated name and returns its retrieval URL.
	Upload(ctx context.Context, r io.Reader, contentType string) (string, error)
}

type localStorage struct {
	dir     string
	baseURL string
}

// NewLocalStorage writes photos below dir. URLs are baseURL joined with the
// photo's relative path, which is what Handler serves.
func NewLocalStorage(dir, baseURL string) Storage {
	return &localStorage{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}
}

func (s *localStorage) Upload(ctx context.Context, r io.Reader, contentType string) (string, error) {
	ext, ok := extensions[strings.ToLower(strings.TrimSpace(contentType))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, contentType)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	folder := filepath.Join(s.dir, Folder)
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return "", fmt.Errorf("create photo folder: %w", err)
	}
	name := uuid.New().String() + ext
	target := filepath.Join(folder, name)

	f, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("create photo: %w", err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n == 0 {
		err = ErrEmpty
	}
	if err != nil {
		os.Remove(target)
		return "", err
	}
	return s.baseURL + "/" + path.Join(Folder, name), nil
}

// Handler serves stored photos.
type Handler struct{ dir string }

func NewHandler(dir string) *Handler { return &Handler{dir: dir} }

func (h *Handler) RegisterRoutes(r chi.Router) {
	fs := http.StripPrefix("/photos/", http.FileServer(http.Dir(h.dir)))
	r.Get("/photos/*", fs.ServeHTTP)
}
