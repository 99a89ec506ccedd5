package llm

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// EditImage applies one studio operation to the image and returns the
// first image part of the answer.
func (g *Gemini) EditImage(ctx context.Context, req EditRequest) (*EditResult, error) {
	if len(req.Image.Data) == 0 {
		return nil, fmt.Errorf("no image provided")
	}
	text, err := EditPrompt(req.Operation, req.Params, req.GarmentContext)
	if err != nil {
		return nil, err
	}
	model := editModel(req.Operation)

	parts := append([]*genai.Part{genai.NewPartFromText(text)}, imageParts([]Image{req.Image})...)
	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
	}

	result, err := g.client.Models.GenerateContent(ctx, model, textContent(parts...), config)
	if err != nil {
		return nil, fmt.Errorf("gemini image edit failed: %w", classifyError(err))
	}
	usage := usageOf(result, model, "image edit")

	for _, cand := range result.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				mime := part.InlineData.MIMEType
				if mime == "" {
					mime = "image/png"
				}
				return &EditResult{
					Image: Image{Data: part.InlineData.Data, MIMEType: mime},
					Model: model,
					Usage: usage,
				}, nil
			}
		}
	}

	log.Warn().Str("operation", string(req.Operation)).Str("text", result.Text()).Msg("image edit returned no image")
	return nil, ErrNoImage
}
