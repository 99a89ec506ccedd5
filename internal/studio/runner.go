package studio

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/raine/vintifi/internal/session"
)

// Machine is a live Photo Studio session.
type Machine = session.Machine[State, Action]

// NewMachine creates a started studio session for userID.
func NewMachine(userID string) *Machine {
	m := session.NewMachine[State, Action](userID, InitialState(), Reduce)
	m.Start()
	return m
}

const pipelineKind = "pipeline"

// Dispatch applies client actions to m in one step. Replacing, clearing or
// resetting the photo drops any pipeline still running on the old one.
func Dispatch(m *Machine, actions ...Action) (State, error) {
	var kinds []string
	for _, a := range actions {
		switch a.(type) {
		case SetPhoto, ClearPhoto, Reset:
			kinds = []string{pipelineKind}
		}
	}
	return m.Supersede(kinds, actions...)
}

// Source tells the image backend where a request came from; the free first
// item pass only applies to wizard requests.
type Source string

const (
	SourceStudio     Source = "studio"
	SourceSellWizard Source = "sell_wizard"
)

// ProcessOptions carries request metadata alongside the image and params.
type ProcessOptions struct {
	Source         Source
	PipelineID     string
	PipelineStep   int
	GarmentContext string
}

// ImageResult is the uniform outcome of one processing call. On failure
// ImageURL echoes the input unchanged.
type ImageResult struct {
	Success  bool
	ImageURL string
	Error    string
}

// ImageProcessor runs a single operation on an image.
type ImageProcessor interface {
	ProcessImage(ctx context.Context, imageURL string, op Operation, params Params, opts ProcessOptions) ImageResult
}

// Handoff receives finished results destined for the Sell Wizard.
type Handoff interface {
	Post(userID string, r session.StudioResult) error
}

var (
	ErrNoPhoto           = errors.New("no photo loaded")
	ErrEmptyPipeline     = errors.New("pipeline is empty")
	ErrAlreadyProcessing = errors.New("pipeline is already processing")
	ErrSuperseded        = errors.New("pipeline run was superseded or the session closed")
	ErrStepFailed        = errors.New("pipeline step failed")
)

// RunRequest describes one pipeline run.
type RunRequest struct {
	Tier Tier
	// ReturnPhotoIndex is the wizard photo slot to hand the result back to,
	// or -1 when the studio was opened directly.
	ReturnPhotoIndex int
	GarmentContext   string
}

// Runner executes pipelines step by step, feeding each step's output into
// the next, and reports progress into the session machine.
type Runner struct {
	processor ImageProcessor
	handoff   Handoff
}

// NewRunner creates a runner. handoff may be nil.
func NewRunner(processor ImageProcessor, handoff Handoff) *Runner {
	return &Runner{processor: processor, handoff: handoff}
}

// Run executes the session's current pipeline. A failed step aborts the
// whole run; the caller must start again from scratch.
func (r *Runner) Run(ctx context.Context, m *Machine, req RunRequest) (State, error) {
	// Checked on the worker together with StartProcessing, so only one of
	// two concurrent runs gets through
	var refused error
	tok, st, err := m.TryBegin(pipelineKind, func(s State) bool {
		refused = runnable(s, req.Tier)
		return refused == nil
	}, StartProcessing{})
	switch {
	case errors.Is(err, session.ErrRejected):
		if errors.Is(refused, ErrTierLocked) {
			st, _ = m.DispatchSync(OpenUpgradeModal{})
		}
		return st, refused
	case err != nil:
		return m.State(), ErrSuperseded
	}

	// Snapshot so edits made while processing don't affect this run
	steps := st.clonePipeline()
	pipelineID := uuid.New().String()
	source := SourceStudio
	if req.ReturnPhotoIndex >= 0 {
		source = SourceSellWizard
	}

	logger := log.With().
		Str("userId", m.ID()).
		Str("pipelineId", pipelineID).
		Int("steps", len(steps)).
		Logger()
	logger.Info().Int("credits", PipelineCredits(steps)).Msg("pipeline started")

	input := st.OriginalPhotoURL
	for i, step := range steps {
		if !m.Current(tok) {
			logger.Info().Int("step", i).Msg("pipeline superseded")
			return m.State(), ErrSuperseded
		}
		res := r.processor.ProcessImage(ctx, input, step.Operation, step.Params, ProcessOptions{
			Source:         source,
			PipelineID:     pipelineID,
			PipelineStep:   i,
			GarmentContext: req.GarmentContext,
		})
		if !res.Success {
			msg := res.Error
			if msg == "" {
				msg = "Processing failed"
			}
			logger.Warn().Int("step", i).Str("operation", string(step.Operation)).Str("error", msg).Msg("pipeline step failed")
			if !m.Complete(tok, ProcessingError{Error: msg}) {
				return m.State(), ErrSuperseded
			}
			return m.State(), fmt.Errorf("%w: step %d (%s): %s", ErrStepFailed, i+1, step.Operation, msg)
		}
		input = res.ImageURL
		if i < len(steps)-1 {
			if !m.Complete(tok, ProcessingStepComplete{StepIndex: i, ImageURL: input}) {
				return m.State(), ErrSuperseded
			}
		}
	}

	if !m.Complete(tok, ProcessingComplete{ImageURL: input}) {
		return m.State(), ErrSuperseded
	}
	logger.Info().Str("resultUrl", input).Msg("pipeline complete")

	if req.ReturnPhotoIndex >= 0 && r.handoff != nil {
		err := r.handoff.Post(m.ID(), session.StudioResult{
			PhotoIndex:  req.ReturnPhotoIndex,
			ImageURL:    input,
			OriginalURL: st.OriginalPhotoURL,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("failed to hand result back to wizard")
		}
	}
	return m.State(), nil
}

// runnable reports why s cannot start a pipeline for tier, or nil.
func runnable(s State, tier Tier) error {
	switch {
	case s.OriginalPhotoURL == "":
		return ErrNoPhoto
	case len(s.Pipeline) == 0:
		return ErrEmptyPipeline
	case s.IsProcessing:
		return ErrAlreadyProcessing
	}
	if err := ValidatePipeline(s.Pipeline); err != nil {
		return fmt.Errorf("invalid pipeline: %w", err)
	}
	if locked := LockedOperations(s.Pipeline, tier); len(locked) > 0 {
		return fmt.Errorf("%s: %w", joinOperations(locked), ErrTierLocked)
	}
	return nil
}

func joinOperations(ops []Operation) string {
	names := make([]string, len(ops))
	for i, op := range ops {
		names[i] = string(op)
	}
	return strings.Join(names, ", ")
}
