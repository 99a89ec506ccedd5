package importer

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
	"github.com/go-shiori/go-readability"

	"github.com/raine/vintifi/internal/firecrawl"
)

const (
	desktopUA = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	// Pages shorter than this are login walls or bot checks.
	minPageText = 50
	maxPageBody = 5 * 1024 * 1024
)

var (
	multiSpace   = regexp.MustCompile(`[ \t]+`)
	multiNewline = regexp.MustCompile(`\n{3,}`)
	titleTagRe   = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
)

// Page is the readable text of a listing page.
type Page struct {
	Title string
	Text  string
}

// Scraper renders pages through a headless browser service.
type Scraper interface {
	Configured() bool
	Scrape(ctx context.Context, url string, opts firecrawl.ScrapeOptions) (*firecrawl.Page, error)
}

// PageReader gets listing page text, through the scraper when one is
// configured and by plain fetch otherwise.
type PageReader struct {
	scraper    Scraper
	httpClient *resty.Client
}

func NewPageReader(scraper Scraper) *PageReader {
	return &PageReader{
		scraper: scraper,
		httpClient: resty.New().
			SetTimeout(30*time.Second).
			SetHeader("User-Agent", desktopUA).
			SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8").
			SetHeader("Accept-Language", "en-GB,en;q=0.9"),
	}
}

func (r *PageReader) Read(ctx context.Context, pageURL string) (*Page, error) {
	var page *Page
	var err error
	if r.scraper != nil && r.scraper.Configured() {
		page, err = r.scrape(ctx, pageURL)
	} else {
		page, err = r.fetch(ctx, pageURL)
	}
	if err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(page.Text) < minPageText {
		return nil, fmt.Errorf("page text too short (%d chars), possibly blocked", utf8.RuneCountInString(page.Text))
	}
	return page, nil
}

func (r *PageReader) scrape(ctx context.Context, pageURL string) (*Page, error) {
	res, err := r.scraper.Scrape(ctx, pageURL, firecrawl.ScrapeOptions{
		Formats: []string{"markdown"},
		WaitFor: 6000,
	})
	if err != nil {
		return nil, err
	}
	return &Page{Title: res.Metadata.Title, Text: normalizeText(res.Markdown)}, nil
}

func (r *PageReader) fetch(ctx context.Context, pageURL string) (*Page, error) {
	res, err := r.httpClient.R().SetContext(ctx).Get(pageURL)
	if err != nil {
		return nil, fmt.Errorf("fetch page: %w", err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("HTTP %d for %s", res.StatusCode(), pageURL)
	}
	body := res.Body()
	if len(body) > maxPageBody {
		body = body[:maxPageBody]
	}

	parsedURL, _ := url.Parse(pageURL)
	article, err := readability.FromReader(bytes.NewReader(body), parsedURL)
	if err != nil {
		return nil, fmt.Errorf("readability: %w", err)
	}

	page := &Page{Text: normalizeText(article.TextContent)}
	if m := titleTagRe.FindSubmatch(body); m != nil {
		page.Title = strings.TrimSpace(string(m[1]))
	}
	return page, nil
}

func normalizeText(s string) string {
	s = strings.TrimSpace(s)
	s = multiSpace.ReplaceAllString(s, " ")
	s = multiNewline.ReplaceAllString(s, "\n\n")
	return s
}
