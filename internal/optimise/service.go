package optimise

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/raine/vintifi/internal/adapter"
	"github.com/raine/vintifi/internal/apierror"
	"github.com/raine/vintifi/internal/auth"
	"github.com/raine/vintifi/internal/credits"
	"github.com/raine/vintifi/internal/llm"
	"github.com/raine/vintifi/internal/metrics"
)

const (
	// MaxTitleLength is the marketplace title limit.
	MaxTitleLength = 80
	// MaxHashtags is how many hashtags are kept.
	MaxHashtags = 5
)

// ImageFetcher loads listing photos for the model to look at.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, string, error)
}

// Service is the listing optimisation function.
type Service struct {
	store   credits.Store
	writer  llm.ListingWriter
	fetcher ImageFetcher
	metrics *metrics.Metrics
}

func NewService(store credits.Store, writer llm.ListingWriter, fetcher ImageFetcher, m *metrics.Metrics) *Service {
	return &Service{store: store, writer: writer, fetcher: fetcher, metrics: m}
}

// Optimise rewrites the listing copy for one credit, or for free with the
// first item pass when called from the wizard.
func (s *Service) Optimise(ctx context.Context, user auth.User, req adapter.OptimiseRequest) (*adapter.OptimiseResult, error) {
	charge, err := credits.Begin(s.store, s.metrics, user, credits.Request{
		Operation:          "optimise_listing",
		Description:        "Listing optimisation",
		Amount:             1,
		AllowFirstItemPass: req.SellWizard,
	})
	if err != nil {
		return nil, err
	}

	in := llm.ListingInput{
		Title:       req.Title,
		Description: req.Description,
		Brand:       req.Brand,
		Category:    req.Category,
		Size:        req.Size,
		Condition:   req.Condition,
		Colour:      req.Colour,
		PhotoCount:  len(req.Photos),
		Photos:      s.fetchPhotos(ctx, req.Photos),
	}

	out, err := s.writer.OptimiseListing(ctx, in)
	if err != nil {
		charge.Refund()
		log.Error().Err(err).Str("userId", user.ID).Msg("listing optimisation failed")
		if errors.Is(err, llm.ErrRateLimited) {
			return nil, apierror.Wrap(http.StatusTooManyRequests, "Rate limit exceeded, please try again shortly.", err)
		}
		return nil, apierror.Wrap(http.StatusInternalServerError, "AI analysis failed. Please try again.", err)
	}
	charge.Commit()

	score := out.HealthScore
	score.PhotoScore = llm.PhotoScore(len(req.Photos))
	score.Overall = min(100, score.TitleScore+score.DescriptionScore+score.PhotoScore+score.CompletenessScore)

	return &adapter.OptimiseResult{
		OptimisedTitle:       TrimTitle(out.Title),
		OptimisedDescription: StripMarkdown(out.Description),
		Hashtags:             NormaliseHashtags(out.Hashtags),
		HealthScore: &adapter.HealthScore{
			Overall:           score.Overall,
			TitleScore:        score.TitleScore,
			DescriptionScore:  score.DescriptionScore,
			PhotoScore:        score.PhotoScore,
			CompletenessScore: score.CompletenessScore,
		},
		CreditsUsed: charge.Credits,
	}, nil
}

// fetchPhotos loads up to llm.MaxOptimisePhotos photos. Photos that fail to
// load are skipped.
func (s *Service) fetchPhotos(ctx context.Context, urls []string) []llm.Image {
	if s.fetcher == nil {
		return nil
	}
	var images []llm.Image
	for _, url := range urls {
		if len(images) == llm.MaxOptimisePhotos {
			break
		}
		data, mime, err := s.fetcher.Fetch(ctx, url)
		if err != nil {
			log.Warn().Err(err).Str("url", url).Msg("skipping photo for optimisation")
			continue
		}
		images = append(images, llm.Image{Data: data, MIMEType: mime})
	}
	return images
}

var (
	boldRe      = regexp.MustCompile(`\*{1,3}([^*]+)\*{1,3}`)
	underlineRe = regexp.MustCompile(`_{1,2}([^_]+)_{1,2}`)
	headerRe    = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	bulletRe    = regexp.MustCompile(`(?m)^[-*•]\s+`)
	blankRunRe  = regexp.MustCompile(`\n{3,}`)
)

// StripMarkdown removes emphasis, headers and bullets and collapses runs
// of blank lines. Hashtags at line start are kept.
func StripMarkdown(s string) string {
	s = boldRe.ReplaceAllString(s, "$1")
	s = underlineRe.ReplaceAllString(s, "$1")
	s = headerRe.ReplaceAllString(s, "")
	s = bulletRe.ReplaceAllString(s, "")
	s = blankRunRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// NormaliseHashtags prefixes #, drops spaces and duplicates
// (case-insensitively) and keeps at most MaxHashtags.
func NormaliseHashtags(tags []string) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, t := range tags {
		t = strings.Join(strings.Fields(t), "")
		t = strings.TrimLeft(t, "#")
		if t == "" {
			continue
		}
		key := strings.ToLower(t)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, "#"+t)
		if len(out) == MaxHashtags {
			break
		}
	}
	return out
}

// TrimTitle cuts a title to MaxTitleLength characters on a word boundary
// where possible.
func TrimTitle(title string) string {
	title = strings.TrimSpace(title)
	if utf8.RuneCountInString(title) <= MaxTitleLength {
		return title
	}
	runes := []rune(title)[:MaxTitleLength]
	cut := string(runes)
	if i := strings.LastIndex(cut, " "); i > MaxTitleLength/2 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut)
}
