package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultPerplexityBaseURL = "https://api.perplexity.ai"
	perplexityModel          = "sonar-pro"
)

var ErrResearchNotConfigured = errors.New("market research is not configured")

const researchSystemPrompt = "UK secondhand clothing market analyst. Focus on UK resale prices across eBay, Depop, Vinted. Vinted prices are typically 50-70% lower than eBay."

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model               string        `json:"model"`
	Messages            []chatMessage `json:"messages"`
	SearchRecencyFilter string        `json:"search_recency_filter,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Perplexity asks a search-grounded model about recent resale prices.
type Perplexity struct {
	httpClient *resty.Client
	apiKey     string
}

func NewPerplexity(baseURL, apiKey string) *Perplexity {
	if baseURL == "" {
		baseURL = DefaultPerplexityBaseURL
	}
	return &Perplexity{
		apiKey: apiKey,
		httpClient: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(45 * time.Second),
	}
}

func (p *Perplexity) Configured() bool {
	return p != nil && p.apiKey != ""
}

func researchQuestion(searchTerm, size string) string {
	sizeNote := ""
	if size != "" {
		sizeNote = " in size " + size
	}
	return fmt.Sprintf("What price range do %q%s sell for secondhand in the UK? Vinted vs eBay vs Depop?", searchTerm, sizeNote)
}

// Research returns the model's market notes for searchTerm.
func (p *Perplexity) Research(ctx context.Context, searchTerm, size string) (string, error) {
	if !p.Configured() {
		return "", ErrResearchNotConfigured
	}

	var result chatResponse
	res, err := p.httpClient.R().
		SetContext(ctx).
		SetAuthToken(p.apiKey).
		SetBody(chatRequest{
			Model: perplexityModel,
			Messages: []chatMessage{
				{Role: "system", Content: researchSystemPrompt},
				{Role: "user", Content: researchQuestion(searchTerm, size)},
			},
			SearchRecencyFilter: "month",
		}).
		SetResult(&result).
		Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("perplexity request failed: %w", err)
	}
	if res.IsError() {
		return "", fmt.Errorf("perplexity request failed: status %d", res.StatusCode())
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("perplexity returned no choices")
	}
	return result.Choices[0].Message.Content, nil
}
