package llm

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"

	"github.com/rs/zerolog/log"
)

// CopyCache stores optimisation results by item hash.
type CopyCache interface {
	GetOptimiseCache(itemHash string) (string, error)
	SetOptimiseCache(itemHash, result string) error
}

// CachedWriter wraps a ListingWriter with a persistent cache so the same
// item is not rewritten twice.
type CachedWriter struct {
	inner ListingWriter
	store CopyCache
}

// NewCachedWriter creates a cached writer. store may be nil.
func NewCachedWriter(inner ListingWriter, store CopyCache) *CachedWriter {
	return &CachedWriter{inner: inner, store: store}
}

// hashListing hashes every field that affects the output. Each field is
// length-prefixed so ("ab","c") and ("a","bc") differ.
func hashListing(in ListingInput) string {
	h := sha256.New()
	write := func(b []byte) {
		binary.Write(h, binary.LittleEndian, int64(len(b)))
		h.Write(b)
	}
	for _, s := range []string{in.Title, in.Description, in.Brand, in.Category, in.Size, in.Condition, in.Colour, in.SellerNotes} {
		write([]byte(s))
	}
	binary.Write(h, binary.LittleEndian, int64(in.PhotoCount))
	for _, img := range in.Photos {
		write(img.Data)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// OptimiseListing implements ListingWriter with caching.
func (c *CachedWriter) OptimiseListing(ctx context.Context, in ListingInput) (*ListingCopy, error) {
	hash := hashListing(in)

	if c.store != nil {
		cached, err := c.store.GetOptimiseCache(hash)
		if err != nil {
			log.Warn().Err(err).Msg("failed to check optimise cache")
		} else if cached != "" {
			var out ListingCopy
			jsonErr := json.Unmarshal([]byte(cached), &out)
			if jsonErr == nil {
				log.Debug().Str("hash", hash[:16]).Msg("optimise cache hit")
				return &out, nil
			}
			log.Warn().Err(jsonErr).Msg("ignoring corrupt optimise cache entry")
		}
	}

	result, err := c.inner.OptimiseListing(ctx, in)
	if err != nil {
		return nil, err
	}

	if c.store != nil {
		data, err := json.Marshal(result)
		if err == nil {
			err = c.store.SetOptimiseCache(hash, string(data))
		}
		if err != nil {
			log.Warn().Err(err).Msg("failed to cache optimise result")
		} else {
			log.Debug().Str("hash", hash[:16]).Msg("cached optimise result")
		}
	}
	return result, nil
}
