package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

const (
	geminiTextModel     = "gemini-2.5-flash"
	geminiImageModel    = "gemini-2.5-flash-image"
	geminiProImageModel = "gemini-3-pro-image-preview"
)

// Gemini pricing (per million tokens)
const (
	geminiTextInputPricePerMillion   = 0.30
	geminiTextOutputPricePerMillion  = 2.50
	geminiImageInputPricePerMillion  = 0.30
	geminiImageOutputPricePerMillion = 30.00
	geminiProInputPricePerMillion    = 2.00
	geminiProOutputPricePerMillion   = 120.00
)

var (
	// ErrRateLimited is returned when the provider throttles us.
	ErrRateLimited = errors.New("rate limited by AI provider")
	// ErrProviderQuota is returned when the provider account is out of credit.
	ErrProviderQuota = errors.New("AI provider quota exhausted")
	// ErrNoImage is returned when an edit produced no image part.
	ErrNoImage = errors.New("AI did not return an image")
)

// Gemini implements the image editor, listing writer, price analyst and
// listing extractor on top of Google's Gemini API.
type Gemini struct {
	client *genai.Client
}

type GeminiOpts struct {
	APIKey string
	// BaseURL overrides the API endpoint.
	BaseURL string
}

var (
	_ ImageEditor      = (*Gemini)(nil)
	_ ListingWriter    = (*Gemini)(nil)
	_ PriceAnalyst     = (*Gemini)(nil)
	_ ListingExtractor = (*Gemini)(nil)
)

// NewGemini creates a Gemini client.
func NewGemini(ctx context.Context, opts GeminiOpts) (*Gemini, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	cfg := &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &Gemini{client: client}, nil
}

func calculateGeminiCost(inputTokens, outputTokens int64, inputPrice, outputPrice float64) float64 {
	inputCost := float64(inputTokens) / 1_000_000 * inputPrice
	outputCost := float64(outputTokens) / 1_000_000 * outputPrice
	return inputCost + outputCost
}

func modelPrices(model string) (float64, float64) {
	switch model {
	case geminiImageModel:
		return geminiImageInputPricePerMillion, geminiImageOutputPricePerMillion
	case geminiProImageModel:
		return geminiProInputPricePerMillion, geminiProOutputPricePerMillion
	}
	return geminiTextInputPricePerMillion, geminiTextOutputPricePerMillion
}

// usageOf reads token counts off a response and logs the call.
func usageOf(result *genai.GenerateContentResponse, model, call string) Usage {
	usage := Usage{}
	if result.UsageMetadata != nil {
		in, out := modelPrices(model)
		usage.InputTokens = int64(result.UsageMetadata.PromptTokenCount)
		usage.OutputTokens = int64(result.UsageMetadata.CandidatesTokenCount)
		usage.TotalTokens = int64(result.UsageMetadata.TotalTokenCount)
		usage.CostUSD = calculateGeminiCost(usage.InputTokens, usage.OutputTokens, in, out)
	}

	log.Info().
		Str("model", model).
		Int64("inputTokens", usage.InputTokens).
		Int64("outputTokens", usage.OutputTokens).
		Float64("costUSD", usage.CostUSD).
		Msg(call + " llm call")
	return usage
}

// classifyError maps provider status codes onto our sentinels so callers
// can pick the right user-facing message.
func classifyError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: %s", ErrRateLimited, apiErr.Message)
		case http.StatusPaymentRequired:
			return fmt.Errorf("%w: %s", ErrProviderQuota, apiErr.Message)
		}
	}
	return err
}

func textContent(parts ...*genai.Part) []*genai.Content {
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
}

func imageParts(images []Image) []*genai.Part {
	parts := make([]*genai.Part, 0, len(images))
	for _, img := range images {
		mime := img.MIMEType
		if mime == "" {
			mime = "image/jpeg"
		}
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{Data: img.Data, MIMEType: mime}})
	}
	return parts
}

// generateJSON runs a text model with structured output and decodes the
// answer into out.
func (g *Gemini) generateJSON(ctx context.Context, call string, schema *genai.Schema, out any, parts ...*genai.Part) error {
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	}

	result, err := g.client.Models.GenerateContent(ctx, geminiTextModel, textContent(parts...), config)
	if err != nil {
		return fmt.Errorf("gemini %s failed: %w", call, classifyError(err))
	}
	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return fmt.Errorf("empty response from gemini")
	}
	usageOf(result, geminiTextModel, call)

	text := result.Text()
	log.Debug().Str("response", text).Msg(call + " llm output")

	jsonStr, err := extractJSONObject(stripCodeFences(text))
	if err != nil {
		return fmt.Errorf("failed to parse %s response: %w", call, err)
	}
	if err := json.Unmarshal([]byte(jsonStr), out); err != nil {
		return fmt.Errorf("failed to parse %s response: %w (response: %s)", call, err, jsonStr)
	}
	return nil
}

// extractJSONObject extracts a JSON object from text that may contain markdown
// code blocks or other formatting. Returns the extracted JSON string or an error.
func extractJSONObject(text string) (string, error) {
	text = strings.TrimSpace(text)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return "", fmt.Errorf("no JSON object found in response: %s", text)
	}
	return text[start : end+1], nil
}

var codeFenceRe = regexp.MustCompile("(?m)^```[a-zA-Z]*\\s*$")

func stripCodeFences(text string) string {
	return strings.TrimSpace(codeFenceRe.ReplaceAllString(text, ""))
}
