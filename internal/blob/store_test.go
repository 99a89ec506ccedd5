package blob

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_PutGet(t *testing.T) {
	s, err := NewStore(t.TempDir(), "https://app.example/blobs/")
	require.NoError(t, err)

	url, err := s.Put("u1/job.png", []byte("data"))
	require.NoError(t, err)
	assert.Equal(t, "https://app.example/blobs/u1/job.png", url)

	got, err := s.Get("u1/job.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), got)

	key, ok := s.KeyFromURL(url)
	assert.True(t, ok)
	assert.Equal(t, "u1/job.png", key)

	_, ok = s.KeyFromURL("https://elsewhere.example/x.png")
	assert.False(t, ok)
}

func TestStore_RejectsTraversal(t *testing.T) {
	s, err := NewStore(t.TempDir(), "http://x/blobs")
	require.NoError(t, err)

	for _, key := range []string{"", "/abs", "../up", "a/../../b", "a//b", "."} {
		_, err := s.Put(key, []byte("x"))
		assert.ErrorIs(t, err, ErrInvalidKey, key)
	}
	_, ok := s.KeyFromURL("http://x/blobs/../secret")
	assert.False(t, ok)
}

func TestStore_Handler(t *testing.T) {
	s, err := NewStore(t.TempDir(), "http://x/blobs")
	require.NoError(t, err)
	_, err = s.Put("a/b.txt", []byte("hello"))
	require.NoError(t, err)

	srv := httptest.NewServer(http.StripPrefix("/blobs", s.Handler()))
	defer srv.Close()

	res, err := http.Get(srv.URL + "/blobs/a/b.txt")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func pngOf(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestNormaliseImage(t *testing.T) {
	out, err := NormaliseImage(pngOf(t, 3000, 1500))
	require.NoError(t, err)
	cfg, err := DecodeConfig(out)
	require.NoError(t, err)
	assert.Equal(t, MaxImageSide, cfg.Width)
	assert.Equal(t, MaxImageSide/2, cfg.Height)
	assert.Equal(t, []byte{0xFF, 0xD8}, out[:2], "re-encoded as JPEG")

	out, err = NormaliseImage(pngOf(t, 40, 30))
	require.NoError(t, err)
	cfg, err = DecodeConfig(out)
	require.NoError(t, err)
	assert.Equal(t, 40, cfg.Width)

	_, err = NormaliseImage([]byte("not an image"))
	assert.Error(t, err)
}

func TestFetcher(t *testing.T) {
	s, err := NewStore(t.TempDir(), "http://local/blobs")
	require.NoError(t, err)
	img := pngOf(t, 4, 4)
	localURL, err := s.Put("u1/a.png", img)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.jpg" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("remote-bytes"))
	}))
	defer srv.Close()

	f := NewFetcher(s)
	ctx := context.Background()

	data, mime, err := f.Fetch(ctx, localURL)
	require.NoError(t, err)
	assert.Equal(t, img, data)
	assert.Equal(t, "image/png", mime)

	data, mime, err = f.Fetch(ctx, srv.URL+"/photo.jpg")
	require.NoError(t, err)
	assert.Equal(t, "remote-bytes", string(data))
	assert.Equal(t, "image/jpeg", mime)

	_, _, err = f.Fetch(ctx, srv.URL+"/missing.jpg")
	assert.Error(t, err)

	_, _, err = f.Fetch(ctx, "file:///etc/passwd")
	assert.Error(t, err)
}
