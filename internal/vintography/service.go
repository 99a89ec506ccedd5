package vintography

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/raine/vintifi/internal/adapter"
	"github.com/raine/vintifi/internal/apierror"
	"github.com/raine/vintifi/internal/auth"
	"github.com/raine/vintifi/internal/credits"
	"github.com/raine/vintifi/internal/llm"
	"github.com/raine/vintifi/internal/metrics"
	"github.com/raine/vintifi/internal/notify"
	"github.com/raine/vintifi/internal/storage"
	"github.com/raine/vintifi/internal/studio"
)

// Store is the persistence the image function needs.
type Store interface {
	credits.Store
	CreateJob(j storage.Job) (*storage.Job, error)
	MarkJobProcessing(id string) error
	CompleteJob(id, resultURL string, elapsed time.Duration) error
	FailJob(id, message string, elapsed time.Duration) error
}

// ImageFetcher loads the input image.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, string, error)
}

// Blobs stores result images.
type Blobs interface {
	Put(key string, data []byte) (string, error)
}

const (
	msgRateLimited   = "Rate limit exceeded, please try again shortly."
	msgProviderQuota = "AI processing credits exhausted. Please try again later."
	msgFailed        = "AI processing failed. Please try again."
	msgNoImage       = "AI did not return an image. Please try again."
	msgSaveFailed    = "Failed to save processed image"
	msgFetchFailed   = "Could not load the photo. Please upload it again."
)

// Service is the image processing function: it gates, charges and runs a
// single studio operation on one photo.
type Service struct {
	store    Store
	editor   llm.ImageEditor
	fetcher  ImageFetcher
	blobs    Blobs
	metrics  *metrics.Metrics
	notifier notify.Notifier
	now      func() time.Time
}

type ServiceOpts struct {
	Store    Store
	Editor   llm.ImageEditor
	Fetcher  ImageFetcher
	Blobs    Blobs
	Metrics  *metrics.Metrics
	Notifier notify.Notifier
}

func NewService(opts ServiceOpts) *Service {
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.Noop{}
	}
	return &Service{
		store:    opts.Store,
		editor:   opts.Editor,
		fetcher:  opts.Fetcher,
		blobs:    opts.Blobs,
		metrics:  opts.Metrics,
		notifier: notifier,
		now:      time.Now,
	}
}

// Process runs req for user. Failures come back as *apierror.Error with
// the status and message the client should see.
func (s *Service) Process(ctx context.Context, user auth.User, req adapter.ProcessImageRequest) (*adapter.ProcessImageResponse, error) {
	if req.ImageURL == "" || req.Operation == "" {
		return nil, apierror.New(http.StatusBadRequest, "imageUrl and operation are required")
	}
	op := studio.Operation(req.Operation)
	if !op.Valid() {
		return nil, apierror.Newf(http.StatusBadRequest, "Invalid operation: %s", req.Operation)
	}

	logger := log.With().Str("userId", user.ID).Str("operation", string(op)).Logger()

	charge, err := credits.Begin(s.store, s.metrics, user, credits.Request{
		Operation:   string(op),
		Description: "Vintography: " + string(op),
		Amount:      studio.OperationCredits(op),
		// The first item pass is not offered for model shots
		AllowFirstItemPass:  studio.Source(req.Source) == studio.SourceSellWizard && op != studio.OpAIModel,
		InsufficientMessage: insufficientMessage(op),
		Gate: func(p *storage.Profile) error {
			tier := studio.Tier(p.SubscriptionTier)
			if studio.IsOperationLocked(op, tier) {
				return apierror.Newf(http.StatusForbidden, "%s requires a higher subscription plan. You're on %s.", op.Label(), tier)
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	job, err := s.store.CreateJob(storage.Job{
		UserID:       user.ID,
		Operation:    string(op),
		OriginalURL:  req.ImageURL,
		PipelineID:   req.PipelineID,
		PipelineStep: req.PipelineStep,
		CreditsUsed:  charge.Credits,
	})
	if err != nil {
		charge.Refund()
		return nil, apierror.Wrap(http.StatusInternalServerError, "Failed to create job", err)
	}
	logger = logger.With().Str("jobId", job.ID).Logger()
	if err := s.store.MarkJobProcessing(job.ID); err != nil {
		logger.Warn().Err(err).Msg("failed to mark job processing")
	}

	start := s.now()
	resultURL, err := s.run(ctx, user.ID, job.ID, op, req)
	elapsed := s.now().Sub(start)
	if err != nil {
		msg := apierror.Message(err)
		logger.Error().Err(err).Int("status", apierror.Status(err)).Dur("elapsed", elapsed).Msg("image operation failed")
		if ferr := s.store.FailJob(job.ID, err.Error(), elapsed); ferr != nil {
			logger.Warn().Err(ferr).Msg("failed to mark job failed")
		}
		charge.Refund()
		s.metrics.ObserveOperation(string(op), "failed", elapsed)
		s.notifier.ProcessingFailed(user.ID, string(op), msg)
		return nil, err
	}

	if err := s.store.CompleteJob(job.ID, resultURL, elapsed); err != nil {
		logger.Warn().Err(err).Msg("failed to complete job")
	}
	charge.Commit()
	s.metrics.ObserveOperation(string(op), "success", elapsed)
	logger.Info().Dur("elapsed", elapsed).Int("creditsUsed", charge.Credits).Msg("image operation completed")

	return &adapter.ProcessImageResponse{
		Success:     true,
		ResultURL:   resultURL,
		JobID:       job.ID,
		CreditsUsed: charge.Credits,
	}, nil
}

func (s *Service) run(ctx context.Context, userID, jobID string, op studio.Operation, req adapter.ProcessImageRequest) (string, error) {
	data, mime, err := s.fetcher.Fetch(ctx, req.ImageURL)
	if err != nil {
		return "", apierror.Wrap(http.StatusBadRequest, msgFetchFailed, err)
	}

	res, err := s.editor.EditImage(ctx, llm.EditRequest{
		Image:          llm.Image{Data: data, MIMEType: mime},
		Operation:      op,
		Params:         studio.Params(req.Parameters),
		GarmentContext: req.GarmentContext,
	})
	switch {
	case errors.Is(err, llm.ErrRateLimited):
		return "", apierror.Wrap(http.StatusTooManyRequests, msgRateLimited, err)
	case errors.Is(err, llm.ErrProviderQuota):
		// Not 402: clients read 402 as the user's own balance
		return "", apierror.Wrap(http.StatusServiceUnavailable, msgProviderQuota, err)
	case errors.Is(err, llm.ErrNoImage):
		return "", apierror.Wrap(http.StatusInternalServerError, msgNoImage, err)
	case err != nil:
		return "", apierror.Wrap(http.StatusInternalServerError, msgFailed, err)
	}

	url, err := s.blobs.Put(ResultKey(userID, jobID), res.Image.Data)
	if err != nil {
		return "", apierror.Wrap(http.StatusInternalServerError, msgSaveFailed, err)
	}
	return url, nil
}

func insufficientMessage(op studio.Operation) string {
	if op == studio.OpAIModel {
		return "AI Model shots cost 4 credits. Insufficient credits"
	}
	return ""
}

// ResultKey is where the result of a job is stored.
func ResultKey(userID, jobID string) string {
	return fmt.Sprintf("vintography-results/%s/%s.png", userID, jobID)
}
