package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/raine/vintifi/internal/adapter"
	"github.com/raine/vintifi/internal/apierror"
	"github.com/raine/vintifi/internal/auth"
	"github.com/raine/vintifi/internal/studio"
	"github.com/raine/vintifi/internal/wizard"
)

// localBackend runs the wizard and studio operations in process for one
// user instead of going over HTTP.
type localBackend struct {
	s    *Server
	user auth.User
}

var _ wizard.Backend = (*localBackend)(nil)

func (s *Server) backendFor(user auth.User) *localBackend {
	return &localBackend{s: s, user: user}
}

// remoteError gives service failures the shape the adapter client returns,
// so a 402 reads as adapter.ErrInsufficientCredits.
func remoteError(call string, err error) error {
	var ae *apierror.Error
	if errors.As(err, &ae) {
		return &adapter.APIError{Method: "local", URL: call, Status: ae.Status, Message: ae.Message}
	}
	return err
}

func (b *localBackend) ProcessImage(ctx context.Context, imageURL string, op studio.Operation, params studio.Params, opts studio.ProcessOptions) studio.ImageResult {
	resp, err := b.s.Images.Process(ctx, b.user, adapter.ProcessImageRequest{
		ImageURL:       imageURL,
		Operation:      string(op),
		Parameters:     params.Clone(),
		Source:         string(opts.Source),
		PipelineID:     opts.PipelineID,
		PipelineStep:   opts.PipelineStep,
		GarmentContext: opts.GarmentContext,
	})
	if err != nil {
		return studio.ImageResult{ImageURL: imageURL, Error: apierror.Message(err)}
	}
	if !resp.Success || resp.ResultURL == "" {
		return studio.ImageResult{ImageURL: imageURL, Error: resp.Error}
	}
	return studio.ImageResult{Success: true, ImageURL: resp.ResultURL}
}

func (b *localBackend) ImportListing(ctx context.Context, url string) (*adapter.ImportedItem, error) {
	if b.s.Importer == nil {
		return nil, &adapter.APIError{Method: "local", URL: "scrape-vinted", Status: http.StatusServiceUnavailable, Message: "Import is not available"}
	}
	item, err := b.s.Importer.Import(ctx, url)
	return item, remoteError("scrape-vinted", err)
}

func (b *localBackend) UploadImage(ctx context.Context, filename string, data []byte) (string, error) {
	url, err := b.s.storeUpload(b.user.ID, filename, data)
	return url, remoteError("upload", err)
}

func (b *localBackend) OptimiseListing(ctx context.Context, req adapter.OptimiseRequest) (*adapter.OptimiseResult, error) {
	res, err := b.s.Optimiser.Optimise(ctx, b.user, req)
	return res, remoteError("optimize-listing", err)
}

func (b *localBackend) PriceCheck(ctx context.Context, req adapter.PriceCheckRequest) (*adapter.PriceCheckResult, error) {
	res, err := b.s.Pricing.Check(ctx, b.user, req)
	return res, remoteError("price-check", err)
}

func (b *localBackend) UpsertListing(ctx context.Context, draft adapter.ListingDraft) (string, error) {
	id, err := b.s.saveListing(b.user, draft)
	return id, remoteError("listings", err)
}

func (b *localBackend) GetProfile(ctx context.Context) (*adapter.Profile, error) {
	p, err := b.s.profile(b.user)
	return p, remoteError("profile", err)
}
