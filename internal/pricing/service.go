// Package pricing recommends a selling price from scraped marketplace
// prices, search-grounded market research and an LLM verdict.
package pricing

import (
	"context"
	"errors"
	"net/http"
	"sort"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/raine/vintifi/internal/adapter"
	"github.com/raine/vintifi/internal/apierror"
	"github.com/raine/vintifi/internal/auth"
	"github.com/raine/vintifi/internal/credits"
	"github.com/raine/vintifi/internal/firecrawl"
	"github.com/raine/vintifi/internal/llm"
	"github.com/raine/vintifi/internal/metrics"
	"github.com/raine/vintifi/internal/storage"
)

const maxExcerpt = 3000

type Store interface {
	credits.Store
	SavePriceCheck(r storage.PriceCheckRecord) (string, error)
}

// Scraper renders a search page.
type Scraper interface {
	Configured() bool
	Scrape(ctx context.Context, url string, opts firecrawl.ScrapeOptions) (*firecrawl.Page, error)
}

// Researcher answers free-form market questions.
type Researcher interface {
	Configured() bool
	Research(ctx context.Context, searchTerm, size string) (string, error)
}

type Service struct {
	store      Store
	analyst    llm.PriceAnalyst
	scraper    Scraper
	researcher Researcher
	metrics    *metrics.Metrics
}

type ServiceOpts struct {
	Store      Store
	Analyst    llm.PriceAnalyst
	Scraper    Scraper
	Researcher Researcher
	Metrics    *metrics.Metrics
}

func NewService(opts ServiceOpts) *Service {
	return &Service{
		store:      opts.Store,
		analyst:    opts.Analyst,
		scraper:    opts.Scraper,
		researcher: opts.Researcher,
		metrics:    opts.Metrics,
	}
}

// evidence is what the scraper and researcher found. Either half may be
// empty.
type evidence struct {
	prices  []float64
	excerpt string
	notes   string
}

// gather runs the scrape and the research concurrently. Failures only
// reduce the evidence.
func (s *Service) gather(ctx context.Context, searchURL, searchTerm, size string) evidence {
	var ev evidence
	g, gctx := errgroup.WithContext(ctx)

	if s.scraper != nil && s.scraper.Configured() {
		g.Go(func() error {
			page, err := s.scraper.Scrape(gctx, searchURL, firecrawl.ScrapeOptions{
				Formats:         []string{"markdown"},
				OnlyMainContent: true,
				WaitFor:         3000,
			})
			if err != nil {
				log.Warn().Err(err).Str("url", searchURL).Msg("price scrape failed")
				return nil
			}
			ev.prices = ExtractPrices(page.Markdown)
			ev.excerpt = truncate(page.Markdown, maxExcerpt)
			return nil
		})
	}
	if s.researcher != nil && s.researcher.Configured() {
		g.Go(func() error {
			notes, err := s.researcher.Research(gctx, searchTerm, size)
			if err != nil {
				log.Warn().Err(err).Str("searchTerm", searchTerm).Msg("market research failed")
				return nil
			}
			ev.notes = notes
			return nil
		})
	}
	_ = g.Wait()
	return ev
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// Check prices an item for one credit, or for free with the first item
// pass when called from the wizard.
func (s *Service) Check(ctx context.Context, user auth.User, req adapter.PriceCheckRequest) (*adapter.PriceCheckResult, error) {
	charge, err := credits.Begin(s.store, s.metrics, user, credits.Request{
		Operation:          "price_check",
		Description:        "Price check",
		Amount:             1,
		AllowFirstItemPass: req.SellWizard,
	})
	if err != nil {
		return nil, err
	}

	searchTerm := BuildSearchTerm(req.Brand, req.Category, req.Title)
	searchURL := BuildVintedURL(req.Brand, req.Category, req.Title, req.Condition)
	ev := s.gather(ctx, searchURL, searchTerm, req.Size)
	maxConfidence := MaxConfidence(len(ev.prices))

	analysis, err := s.analyst.AnalysePrices(ctx, llm.PriceInput{
		Brand:         req.Brand,
		Title:         req.Title,
		Category:      req.Category,
		Condition:     req.Condition,
		Size:          req.Size,
		ScrapedPrices: ev.prices,
		PageExcerpt:   ev.excerpt,
		MarketNotes:   ev.notes,
		MaxConfidence: maxConfidence,
	})
	if err != nil {
		charge.Refund()
		s.metrics.PriceCheck("failed")
		log.Error().Err(err).Str("userId", user.ID).Str("searchTerm", searchTerm).Msg("price analysis failed")
		if errors.Is(err, llm.ErrRateLimited) {
			return nil, apierror.Wrap(http.StatusTooManyRequests, "AI rate limit reached.", err)
		}
		return nil, apierror.Wrap(http.StatusInternalServerError, "AI analysis failed. Please try again.", err)
	}
	charge.Commit()

	result := buildResult(analysis, ev.prices, maxConfidence, searchURL)

	_, err = s.store.SavePriceCheck(storage.PriceCheckRecord{
		UserID:         user.ID,
		Brand:          req.Brand,
		Title:          firstNonEmpty(analysis.ItemTitle, req.Title),
		Condition:      req.Condition,
		Low:            result.PriceRange.Low,
		Median:         result.PriceRange.Median,
		High:           result.PriceRange.High,
		SuggestedPrice: result.SuggestedPrice,
		Confidence:     result.Confidence,
		Comparables:    result.Comparables,
		SearchURL:      searchURL,
	})
	if err != nil {
		// History is best effort.
		log.Error().Err(err).Str("userId", user.ID).Msg("failed to save price check")
	}

	s.metrics.PriceCheck("ok")
	log.Info().
		Str("userId", user.ID).
		Str("searchTerm", searchTerm).
		Int("scrapedPrices", len(ev.prices)).
		Float64("suggested", result.SuggestedPrice).
		Int("confidence", result.Confidence).
		Msg("price check completed")
	return result, nil
}

// buildResult orders the range, keeps the suggestion inside it and caps the
// confidence.
func buildResult(a *llm.PriceAnalysis, prices []float64, maxConfidence int, searchURL string) *adapter.PriceCheckResult {
	bounds := []float64{a.Low, a.Median, a.High}
	sort.Float64s(bounds)
	low, median, high := bounds[0], bounds[1], bounds[2]

	suggested := a.RecommendedPrice
	if suggested <= 0 {
		suggested = median
	}
	if high > 0 {
		suggested = min(max(suggested, low), high)
	}

	confidence := min(max(a.Confidence, 0), maxConfidence)

	comparables := len(a.Comparables)
	if comparables == 0 {
		comparables = len(prices)
	}

	return &adapter.PriceCheckResult{
		PriceRange:     adapter.PriceRange{Low: low, Median: median, High: high},
		SuggestedPrice: suggested,
		Confidence:     confidence,
		Comparables:    comparables,
		Insights:       a.Insights,
		SearchURL:      searchURL,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
