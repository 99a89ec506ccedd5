package blob

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog/log"
)

// MaxImageSide is the longest edge kept for uploaded photos.
const MaxImageSide = 2048

const jpegQuality = 80

var ErrInvalidKey = errors.New("invalid blob key")

// Store keeps files in a local directory and serves them under a public
// URL prefix.
type Store struct {
	dir     string
	baseURL string
}

// NewStore creates the bucket directory if needed. baseURL is the public
// address blobs are served from, e.g. https://app.example/blobs.
func NewStore(dir, baseURL string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create blob dir: %w", err)
	}
	return &Store{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func cleanKey(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") {
		return "", ErrInvalidKey
	}
	cleaned := path.Clean(key)
	if cleaned != key || cleaned == "." || strings.HasPrefix(cleaned, "..") {
		return "", ErrInvalidKey
	}
	return cleaned, nil
}

// Put writes data under key and returns its public URL.
func (s *Store) Put(key string, data []byte) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	full := filepath.Join(s.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return "", fmt.Errorf("failed to create blob dir: %w", err)
	}
	if err := os.WriteFile(full, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write blob: %w", err)
	}
	log.Debug().Str("key", key).Int("bytes", len(data)).Msg("stored blob")
	return s.URL(key), nil
}

// Get reads the blob stored under key.
func (s *Store) Get(key string) ([]byte, error) {
	key, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.dir, filepath.FromSlash(key)))
	if err != nil {
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}
	return data, nil
}

// URL is the public address of key.
func (s *Store) URL(key string) string {
	return s.baseURL + "/" + key
}

// KeyFromURL returns the key for a URL served by this store.
func (s *Store) KeyFromURL(url string) (string, bool) {
	prefix := s.baseURL + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	key, err := cleanKey(strings.TrimPrefix(url, prefix))
	if err != nil {
		return "", false
	}
	return key, true
}

// Handler serves the bucket. Mount it under the URL prefix with
// http.StripPrefix.
func (s *Store) Handler() http.Handler {
	return http.FileServer(http.Dir(s.dir))
}

// NormaliseImage decodes an uploaded photo, applies its EXIF orientation,
// fits it inside MaxImageSide and re-encodes it as JPEG.
func NormaliseImage(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("image decode failed: %w", err)
	}
	b := img.Bounds()
	if b.Dx() > MaxImageSide || b.Dy() > MaxImageSide {
		img = imaging.Fit(img, MaxImageSide, MaxImageSide, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, fmt.Errorf("JPEG encode failed: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeConfig reports the dimensions of an encoded image.
func DecodeConfig(data []byte) (image.Config, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	return cfg, err
}
