package adapter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/raine/vintifi/internal/studio"
)

// Ensure Client can drive the studio pipeline runner
var _ studio.ImageProcessor = (*Client)(nil)

// ProcessImage runs one operation on imageURL. Every failure shape
// (transport, non-2xx, provider-reported) is folded into a result with
// Success false and the input URL unchanged.
func (c *Client) ProcessImage(ctx context.Context, imageURL string, op studio.Operation, params studio.Params, opts studio.ProcessOptions) studio.ImageResult {
	fail := func(msg string) studio.ImageResult {
		return studio.ImageResult{Success: false, ImageURL: imageURL, Error: msg}
	}

	result := &ProcessImageResponse{}
	_, err := handleError(c.req(ctx, result).
		SetBody(ProcessImageRequest{
			ImageURL:       imageURL,
			Operation:      string(op),
			Parameters:     params,
			Source:         string(opts.Source),
			PipelineID:     opts.PipelineID,
			PipelineStep:   opts.PipelineStep,
			GarmentContext: opts.GarmentContext,
		}).
		Post("/functions/v1/vintography"))
	if err != nil {
		log.Warn().Err(err).Str("operation", string(op)).Msg("process image failed")
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Message != "" {
			return fail(apiErr.Message)
		}
		return fail("Image processing failed. Please try again.")
	}
	if !result.Success || result.ResultURL == "" {
		msg := result.Error
		if msg == "" {
			msg = "Image processing failed. Please try again."
		}
		return fail(msg)
	}
	return studio.ImageResult{Success: true, ImageURL: result.ResultURL}
}

// OptimiseListing generates an optimised title, description and hashtags.
func (c *Client) OptimiseListing(ctx context.Context, req OptimiseRequest) (*OptimiseResult, error) {
	result := &OptimiseResult{}
	_, err := handleError(c.req(ctx, result).
		SetBody(req).
		Post("/functions/v1/optimize-listing"))
	if err != nil {
		return nil, fmt.Errorf("optimise listing: %w", err)
	}
	return result, nil
}

// PriceCheck fetches a price range for the item.
func (c *Client) PriceCheck(ctx context.Context, req PriceCheckRequest) (*PriceCheckResult, error) {
	result := &PriceCheckResult{}
	_, err := handleError(c.req(ctx, result).
		SetBody(req).
		Post("/functions/v1/price-check"))
	if err != nil {
		return nil, fmt.Errorf("price check: %w", err)
	}
	return result, nil
}

// ImportListing pulls item details from a marketplace listing URL.
func (c *Client) ImportListing(ctx context.Context, url string) (*ImportedItem, error) {
	result := &ImportedItem{}
	_, err := handleError(c.req(ctx, result).
		SetBody(ImportRequest{URL: url}).
		Post("/functions/v1/scrape-vinted"))
	if err != nil {
		return nil, fmt.Errorf("import listing: %w", err)
	}
	return result, nil
}

// UploadImage stores a photo and returns its public URL.
func (c *Client) UploadImage(ctx context.Context, filename string, data []byte) (string, error) {
	result := &UploadResult{}
	_, err := handleError(c.req(ctx, result).
		SetFileReader("file", filename, bytes.NewReader(data)).
		Post("/functions/v1/upload"))
	if err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}
	if result.URL == "" {
		return "", fmt.Errorf("upload image: empty url in response")
	}
	return result.URL, nil
}

// CreateCheckout returns the payment page URL to redirect the user to.
func (c *Client) CreateCheckout(ctx context.Context, req CheckoutRequest) (string, error) {
	result := &CheckoutResult{}
	_, err := handleError(c.req(ctx, result).
		SetBody(req).
		Post("/functions/v1/create-checkout"))
	if err != nil {
		return "", fmt.Errorf("create checkout: %w", err)
	}
	return result.URL, nil
}

// GetProfile returns the signed-in user's profile.
func (c *Client) GetProfile(ctx context.Context) (*Profile, error) {
	result := &Profile{}
	_, err := handleError(c.req(ctx, result).Get("/api/profile"))
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return result, nil
}

// UpsertListing creates or updates a listing and returns its id.
func (c *Client) UpsertListing(ctx context.Context, draft ListingDraft) (string, error) {
	result := &UpsertResult{}
	_, err := handleError(c.req(ctx, result).
		SetBody(draft).
		Post("/api/listings"))
	if err != nil {
		return "", fmt.Errorf("save listing: %w", err)
	}
	return result.ID, nil
}

// GetListing fetches one listing.
func (c *Client) GetListing(ctx context.Context, id string) (*Listing, error) {
	result := &Listing{}
	res, err := handleError(c.req(ctx, result).
		SetPathParams(map[string]string{"id": id}).
		Get("/api/listings/{id}"))
	if err != nil {
		if res != nil && res.StatusCode() == http.StatusNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get listing: %w", err)
	}
	return result, nil
}

// ListListings returns the user's listings, newest first.
func (c *Client) ListListings(ctx context.Context) ([]Listing, error) {
	var result struct {
		Listings []Listing `json:"listings"`
	}
	_, err := handleError(c.req(ctx, &result).Get("/api/listings"))
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	return result.Listings, nil
}
