// Package firecrawl is a small client for the Firecrawl scrape API.
package firecrawl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const DefaultBaseURL = "https://api.firecrawl.dev"

// ErrNotConfigured is returned by a client without an API key.
var ErrNotConfigured = errors.New("firecrawl is not configured")

type ScrapeOptions struct {
	Formats         []string
	OnlyMainContent bool
	// WaitFor is how long the page is given to render, in milliseconds.
	WaitFor int
}

type scrapeRequest struct {
	URL             string   `json:"url"`
	Formats         []string `json:"formats"`
	OnlyMainContent bool     `json:"onlyMainContent"`
	WaitFor         int      `json:"waitFor,omitempty"`
}

type Metadata struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	SourceURL   string `json:"sourceURL"`
	StatusCode  int    `json:"statusCode"`
}

type Page struct {
	Markdown string   `json:"markdown"`
	HTML     string   `json:"html"`
	Metadata Metadata `json:"metadata"`
}

type scrapeResponse struct {
	Success bool   `json:"success"`
	Data    Page   `json:"data"`
	Error   string `json:"error"`
}

type Client struct {
	httpClient *resty.Client
	apiKey     string
}

// NewClient creates a client. An empty apiKey yields a client whose calls
// return ErrNotConfigured.
func NewClient(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiKey: apiKey,
		httpClient: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(60*time.Second).
			SetHeader("Accept", "application/json"),
	}
}

// Configured reports whether the client has an API key.
func (c *Client) Configured() bool {
	return c != nil && c.apiKey != ""
}

// Scrape renders url and returns the requested formats.
func (c *Client) Scrape(ctx context.Context, url string, opts ScrapeOptions) (*Page, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	formats := opts.Formats
	if len(formats) == 0 {
		formats = []string{"markdown"}
	}

	var result scrapeResponse
	res, err := c.httpClient.R().
		SetContext(ctx).
		SetAuthToken(c.apiKey).
		SetBody(scrapeRequest{URL: url, Formats: formats, OnlyMainContent: opts.OnlyMainContent, WaitFor: opts.WaitFor}).
		SetResult(&result).
		SetError(&result).
		Post("/v1/scrape")
	if err != nil {
		return nil, fmt.Errorf("firecrawl scrape failed: %w", err)
	}
	if res.IsError() {
		if result.Error != "" {
			return nil, fmt.Errorf("firecrawl scrape failed (status %d): %s", res.StatusCode(), result.Error)
		}
		return nil, fmt.Errorf("firecrawl scrape failed: status %d", res.StatusCode())
	}
	return &result.Data, nil
}
