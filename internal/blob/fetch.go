package blob

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// MaxFetchBytes bounds remote images pulled in for processing.
const MaxFetchBytes = 20 << 20

// Fetcher loads images by URL. URLs served by the local store are read
// from disk; anything else is downloaded.
type Fetcher struct {
	store      *Store
	httpClient *resty.Client
}

// NewFetcher creates a fetcher. store may be nil.
func NewFetcher(store *Store) *Fetcher {
	return &Fetcher{
		store: store,
		httpClient: resty.New().
			SetDebug(false).
			SetTimeout(30 * time.Second).
			SetHeader("User-Agent", "vintifi-app/1.0"),
	}
}

// Fetch returns the image bytes and MIME type at url.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	if f.store != nil {
		if key, ok := f.store.KeyFromURL(url); ok {
			data, err := f.store.Get(key)
			if err != nil {
				return nil, "", err
			}
			return data, http.DetectContentType(data), nil
		}
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, "", fmt.Errorf("unsupported image url %q", url)
	}

	res, err := f.httpClient.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, "", fmt.Errorf("image download failed: %w", err)
	}
	if res.IsError() {
		return nil, "", fmt.Errorf("image download failed: status %d", res.StatusCode())
	}
	data := res.Body()
	if len(data) > MaxFetchBytes {
		return nil, "", fmt.Errorf("image is too large (%d bytes)", len(data))
	}
	mime := res.Header().Get("Content-Type")
	if !strings.HasPrefix(mime, "image/") {
		mime = http.DetectContentType(data)
	}
	return data, mime, nil
}
