// Package importer pulls an existing Vinted listing into a draft.
package importer

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/raine/vintifi/internal/adapter"
	"github.com/raine/vintifi/internal/apierror"
	"github.com/raine/vintifi/internal/llm"
	"github.com/raine/vintifi/internal/metrics"
	"github.com/raine/vintifi/internal/wizard"
)

const msgInvalidURL = "Please paste a Vinted item URL (e.g. vinted.co.uk/items/12345678-item-name)"

// ItemAPI reads a listing from the marketplace API.
type ItemAPI interface {
	Item(ctx context.Context, ref ItemRef) (*llm.ExtractedListing, error)
}

type PageSource interface {
	Read(ctx context.Context, url string) (*Page, error)
}

type Service struct {
	api       ItemAPI
	pages     PageSource
	extractor llm.ListingExtractor
	metrics   *metrics.Metrics
}

type ServiceOpts struct {
	API       ItemAPI
	Pages     PageSource
	Extractor llm.ListingExtractor
	Metrics   *metrics.Metrics
}

func NewService(opts ServiceOpts) *Service {
	return &Service{api: opts.API, pages: opts.Pages, extractor: opts.Extractor, metrics: opts.Metrics}
}

// Import reads the listing at rawURL. The item API is tried first; when
// its answer lacks a title, price or condition the page is read and an
// LLM fills the gaps. A listing nothing could be read from comes back
// empty rather than as an error.
func (s *Service) Import(ctx context.Context, rawURL string) (*adapter.ImportedItem, error) {
	ref, err := ParseItemURL(rawURL)
	if err != nil {
		return nil, apierror.Wrap(http.StatusBadRequest, msgInvalidURL, err)
	}
	logger := log.With().Str("itemId", ref.ID).Str("domain", ref.Domain).Logger()

	var primary *llm.ExtractedListing
	if s.api != nil {
		primary, err = s.api.Item(ctx, ref)
		if err != nil {
			logger.Warn().Err(err).Msg("vinted api import failed")
		}
	}
	if isComplete(primary) {
		s.metrics.Import("api")
		logger.Info().Msg("imported via vinted api")
		return toImported(primary, ref.URL), nil
	}

	supplement, err := s.extract(ctx, ref)
	if err != nil {
		logger.Warn().Err(err).Msg("page import failed")
	}

	merged := mergeResults(primary, supplement)
	source := "empty"
	switch {
	case primary != nil && supplement != nil:
		source = "merged"
	case primary != nil:
		source = "api"
	case supplement != nil:
		source = "page"
	}
	s.metrics.Import(source)
	logger.Info().Str("source", source).Bool("complete", isComplete(merged)).Msg("imported listing")

	if merged == nil {
		merged = &llm.ExtractedListing{}
	}
	return toImported(merged, ref.URL), nil
}

func (s *Service) extract(ctx context.Context, ref ItemRef) (*llm.ExtractedListing, error) {
	if s.pages == nil || s.extractor == nil {
		return nil, errors.New("page import is not configured")
	}
	page, err := s.pages.Read(ctx, ref.URL)
	if err != nil {
		return nil, err
	}
	out, err := s.extractor.ExtractListing(ctx, llm.PageInput{
		URL:       ref.URL,
		ItemID:    ref.ID,
		Slug:      ref.Slug,
		PageTitle: page.Title,
		Text:      page.Text,
	})
	if err != nil {
		return nil, err
	}
	out.Category = MapCategory(out.Category)
	out.Condition = MapCondition(out.Condition)
	return out, nil
}

func isComplete(l *llm.ExtractedListing) bool {
	return l != nil && l.Title != "" && l.Price != nil && l.Condition != ""
}

// mergeResults fills the gaps in base from supplement. Base values win.
func mergeResults(base, supplement *llm.ExtractedListing) *llm.ExtractedListing {
	if supplement == nil {
		return base
	}
	if base == nil {
		return supplement
	}
	merged := *base
	fill := func(dst *string, src string) {
		if *dst == "" {
			*dst = src
		}
	}
	fill(&merged.Title, supplement.Title)
	fill(&merged.Brand, supplement.Brand)
	fill(&merged.Category, supplement.Category)
	fill(&merged.Size, supplement.Size)
	fill(&merged.Condition, supplement.Condition)
	fill(&merged.Description, supplement.Description)
	if merged.Price == nil {
		merged.Price = supplement.Price
	}
	if len(merged.Photos) == 0 {
		merged.Photos = supplement.Photos
	}
	return &merged
}

// toImported converts to the wire shape, with the condition as the storage
// enum. Labels we do not know are dropped.
func toImported(l *llm.ExtractedListing, sourceURL string) *adapter.ImportedItem {
	condition, _ := wizard.ConditionToEnum(l.Condition)
	photos := l.Photos
	if photos == nil {
		photos = []string{}
	}
	return &adapter.ImportedItem{
		Title:       l.Title,
		Description: l.Description,
		Brand:       l.Brand,
		Category:    l.Category,
		Size:        l.Size,
		Condition:   condition,
		Price:       l.Price,
		Photos:      photos,
		SourceURL:   sourceURL,
	}
}
