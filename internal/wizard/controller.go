package wizard

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/raine/vintifi/internal/adapter"
	"github.com/raine/vintifi/internal/session"
	"github.com/raine/vintifi/internal/studio"
)

// Machine is a live Sell Wizard session.
type Machine = session.Machine[State, Action]

// Backend is the set of remote operations the wizard drives.
type Backend interface {
	studio.ImageProcessor
	ImportListing(ctx context.Context, url string) (*adapter.ImportedItem, error)
	UploadImage(ctx context.Context, filename string, data []byte) (string, error)
	OptimiseListing(ctx context.Context, req adapter.OptimiseRequest) (*adapter.OptimiseResult, error)
	PriceCheck(ctx context.Context, req adapter.PriceCheckRequest) (*adapter.PriceCheckResult, error)
	UpsertListing(ctx context.Context, draft adapter.ListingDraft) (string, error)
	GetProfile(ctx context.Context) (*adapter.Profile, error)
}

var (
	ErrBusy       = errors.New("operation already in progress")
	ErrSuperseded = errors.New("request was superseded or the session closed")
)

const insufficientCreditsMessage = "You've run out of credits. Top up or upgrade your plan to continue."

// Controller runs one user's wizard session: it owns the state machine and
// turns the remote calls into reducer actions.
type Controller struct {
	userID  string
	m       *Machine
	backend Backend
	store   session.Store
	mailbox *session.Mailbox
	logger  zerolog.Logger
}

// NewController recovers the user's snapshot from store and starts a
// session. Every applied action is written back as the new snapshot until
// the draft is saved.
func NewController(userID string, backend Backend, store session.Store, mailbox *session.Mailbox) *Controller {
	c := &Controller{
		userID:  userID,
		backend: backend,
		store:   store,
		mailbox: mailbox,
		logger:  log.With().Str("userId", userID).Str("session", "wizard").Logger(),
	}
	initial := SessionRecoveryInit(store, userID, InitialState())
	c.m = session.NewMachine[State, Action](userID, initial, Reduce)
	c.m.OnChange(func(s State) {
		if s.Saved() {
			return
		}
		if err := SaveSession(store, userID, s); err != nil {
			c.logger.Error().Err(err).Msg("failed to persist wizard snapshot")
		}
	})
	c.m.Start()
	return c
}

// State returns the current wizard state.
func (c *Controller) State() State {
	return c.m.State()
}

// Stop disposes the session. In-flight calls finish but their results are
// dropped.
func (c *Controller) Stop() {
	c.m.Stop()
}

// Request kinds. Each owns a generation token and a busy flag.
const (
	kindImport   = "import"
	kindPhotos   = "photos"
	kindOptimise = "optimise"
	kindPrice    = "price"
	kindSave     = "save"
)

var allKinds = []string{kindImport, kindPhotos, kindOptimise, kindPrice, kindSave}

// idleAction is the action that lowers the busy flag of kind.
func idleAction(kind string) Action {
	switch kind {
	case kindImport:
		return SetImportLoading{}
	case kindPhotos:
		return SetProcessingPhotos{}
	case kindOptimise:
		return SetOptimising{}
	case kindPrice:
		return SetPricing{}
	}
	return SetSaving{}
}

// staleKinds lists the requests whose input a changes. Their in-flight
// results no longer describe the item and must be dropped.
func staleKinds(a Action) []string {
	switch a := a.(type) {
	case Reset:
		return allKinds
	case SetItemData:
		p := a.Patch
		if p.Title != nil || p.Brand != nil || p.Category != nil || p.Size != nil || p.Condition != nil {
			return []string{kindOptimise, kindPrice}
		}
		if p.Description != nil || p.Colour != nil {
			return []string{kindOptimise}
		}
	}
	return nil
}

// supersede applies a after dropping the requests it makes stale. Their
// busy flags are lowered in the same step since their own idle completions
// will never land.
func (c *Controller) supersede(a Action) (State, error) {
	kinds := staleKinds(a)
	if len(kinds) == 0 {
		return c.m.DispatchSync(a)
	}
	actions := []Action{a}
	for _, kind := range kinds {
		actions = append(actions, idleAction(kind))
	}
	st, err := c.m.Supersede(kinds, actions...)
	if err == nil {
		c.logger.Debug().Strs("kinds", kinds).Msg("superseded in-flight requests")
	}
	return st, err
}

// Dispatch applies a client-originated action.
func (c *Controller) Dispatch(a Action) (State, error) {
	return c.supersede(a)
}

// Next advances one step if the current step is complete.
func (c *Controller) Next() (State, error) {
	st := c.m.State()
	if err := ValidateStep(st.CurrentStep, st.Item); err != nil {
		return st, err
	}
	if st.Error != "" {
		if _, err := c.m.DispatchSync(SetError{}); err != nil {
			return st, err
		}
	}
	return c.m.DispatchSync(NextStep{})
}

// Prev goes back one step.
func (c *Controller) Prev() (State, error) {
	return c.m.DispatchSync(PrevStep{})
}

// Reset starts a fresh draft and forgets the snapshot. Requests still in
// flight are dropped when they finish.
func (c *Controller) Reset() (State, error) {
	st, err := c.supersede(Reset{})
	if err != nil {
		return st, err
	}
	if err := ClearSession(c.store, c.userID); err != nil {
		c.logger.Warn().Err(err).Msg("failed to clear wizard snapshot")
	}
	return st, nil
}

// begin opens a request of kind by raising its busy flag. The busy check
// and the raise are one step, so a concurrent request of the same kind gets
// ErrBusy.
func (c *Controller) begin(kind string, busy Action) (session.Token, State, error) {
	tok, st, err := c.m.TryBegin(kind, func(s State) bool {
		return !busyFlag(s, kind)
	}, busy)
	switch {
	case errors.Is(err, session.ErrRejected):
		return tok, st, ErrBusy
	case err != nil:
		return tok, st, ErrSuperseded
	}
	return tok, st, nil
}

func busyFlag(s State, kind string) bool {
	switch kind {
	case kindImport:
		return s.IsImporting
	case kindPhotos:
		return s.IsProcessingPhotos
	case kindOptimise:
		return s.IsOptimising
	case kindPrice:
		return s.IsPricing
	}
	return s.IsSaving
}

// finish applies a request's results together with lowering its busy flag.
// It returns ErrSuperseded when the request went stale in the meantime.
func (c *Controller) finish(tok session.Token, actions ...Action) error {
	if _, _, err := c.m.Apply(session.Step[State, Action]{Token: &tok, Actions: actions}); err != nil {
		c.logger.Debug().Err(err).Str("kind", tok.Kind).Msg("dropping wizard result")
		return ErrSuperseded
	}
	return nil
}

// fail clears the busy flag and records a user-facing error. Collected
// item data is left untouched.
func (c *Controller) fail(tok session.Token, idle Action, fallback string, err error) (State, error) {
	c.logger.Warn().Err(err).Str("kind", tok.Kind).Msg("wizard request failed")
	_ = c.finish(tok, SetError{Error: userMessage(err, fallback)}, idle)
	return c.m.State(), err
}

func userMessage(err error, fallback string) string {
	if errors.Is(err, adapter.ErrInsufficientCredits) {
		return insufficientCreditsMessage
	}
	var apiErr *adapter.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

// Import fills the item from a marketplace listing URL.
func (c *Controller) Import(ctx context.Context, url string) (State, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return c.m.State(), fmt.Errorf("listing url is required")
	}
	tok, st, err := c.begin(kindImport, SetImportLoading{Loading: true})
	if err != nil {
		return st, err
	}

	imported, err := c.backend.ImportListing(ctx, url)
	if err != nil {
		return c.fail(tok, SetImportLoading{}, "Couldn't import that listing. Check the link and try again.", err)
	}

	condition := imported.Condition
	if label, ok := ConditionFromEnum(imported.Condition); ok {
		condition = label
	}
	sourceURL := imported.SourceURL
	if sourceURL == "" {
		sourceURL = url
	}
	patch := ItemPatch{
		Title:       &imported.Title,
		Description: &imported.Description,
		Brand:       &imported.Brand,
		Category:    &imported.Category,
		Size:        &imported.Size,
		Condition:   &condition,
		Colour:      &imported.Colour,
		SourceURL:   &sourceURL,
	}
	if len(imported.Photos) > 0 {
		patch.OriginalPhotos = imported.Photos
	}
	// The imported fields replace what optimise and price checks were given
	_, _, err = c.m.Apply(session.Step[State, Action]{
		Token:     &tok,
		Supersede: []string{kindOptimise, kindPrice},
		Actions:   []Action{SetItemData{Patch: patch}, SetImportLoading{}, SetOptimising{}, SetPricing{}},
	})
	if err != nil {
		c.logger.Debug().Err(err).Msg("dropping imported listing")
		return c.m.State(), ErrSuperseded
	}
	c.logger.Info().Str("url", url).Int("photos", len(imported.Photos)).Msg("imported listing")
	return c.m.State(), nil
}

// AddPhoto uploads a photo and appends it to the item.
func (c *Controller) AddPhoto(ctx context.Context, filename string, data []byte) (State, error) {
	st := c.m.State()
	if len(st.Item.OriginalPhotos) >= MaxPhotos {
		return st, fmt.Errorf("at most %d photos are allowed", MaxPhotos)
	}
	tok, st, err := c.begin(kindPhotos, SetProcessingPhotos{Loading: true})
	if err != nil {
		return st, err
	}

	url, err := c.backend.UploadImage(ctx, filename, data)
	if err != nil {
		return c.fail(tok, SetProcessingPhotos{}, "Photo upload failed. Please try again.", err)
	}
	if err := c.finish(tok, AddOriginalPhoto{URL: url}, SetProcessingPhotos{}); err != nil {
		return c.m.State(), err
	}
	return c.m.State(), nil
}

// QuickEnhance runs a background clean on the photo at index and stores the
// result in its enhanced slot.
func (c *Controller) QuickEnhance(ctx context.Context, index int) (State, error) {
	st := c.m.State()
	if index < 0 || index >= len(st.Item.OriginalPhotos) {
		return st, fmt.Errorf("no photo at index %d", index)
	}
	original := st.Item.OriginalPhotos[index]
	tok, st, err := c.begin(kindPhotos, SetProcessingPhotos{Loading: true})
	if err != nil {
		return st, err
	}

	res := c.backend.ProcessImage(ctx, original, studio.OpCleanBG, studio.DefaultParams(studio.OpCleanBG), studio.ProcessOptions{
		Source: studio.SourceSellWizard,
	})
	if !res.Success {
		msg := res.Error
		if msg == "" {
			msg = "Photo enhancement failed. Please try again."
		}
		return c.fail(tok, SetProcessingPhotos{}, msg, errors.New(msg))
	}

	// The photo list may have changed while the call was running
	_, _, err = c.m.Apply(session.Step[State, Action]{
		Token:   &tok,
		Guard:   slotHolds(index, original),
		Actions: []Action{SetEnhancedPhoto{Index: index, URL: res.ImageURL}},
	})
	if errors.Is(err, session.ErrRejected) {
		c.logger.Info().Int("index", index).Msg("photo slot changed during enhance, dropping result")
	}
	c.m.Complete(tok, SetProcessingPhotos{})
	c.RefreshProfile(ctx)
	return c.m.State(), nil
}

// Optimise generates the optimised title, description and hashtags.
func (c *Controller) Optimise(ctx context.Context) (State, error) {
	tok, st, err := c.begin(kindOptimise, SetOptimising{Loading: true})
	if err != nil {
		return st, err
	}

	it := st.Item
	res, err := c.backend.OptimiseListing(ctx, adapter.OptimiseRequest{
		Title:       it.Title,
		Description: it.Description,
		Brand:       it.Brand,
		Category:    it.Category,
		Size:        it.Size,
		Condition:   it.Condition,
		Colour:      it.Colour,
		Photos:      it.BestPhotos(),
		SellWizard:  true,
	})
	if err != nil {
		return c.fail(tok, SetOptimising{}, "Optimisation failed. Please try again.", err)
	}
	c.RefreshProfile(ctx)
	err = c.finish(tok, SetOptimisedData{
		Title:       res.OptimisedTitle,
		Description: res.OptimisedDescription,
		Hashtags:    res.Hashtags,
	}, SetOptimising{})
	if err != nil {
		return c.m.State(), err
	}
	return c.m.State(), nil
}

// PriceCheck fetches a price range and applies the current strategy.
func (c *Controller) PriceCheck(ctx context.Context) (State, error) {
	tok, st, err := c.begin(kindPrice, SetPricing{Loading: true})
	if err != nil {
		return st, err
	}

	it := st.Item
	condition, ok := ConditionToEnum(it.Condition)
	if !ok {
		condition = it.Condition
	}
	res, err := c.backend.PriceCheck(ctx, adapter.PriceCheckRequest{
		Brand:      it.Brand,
		Title:      it.DisplayTitle(),
		Category:   it.Category,
		Condition:  condition,
		Size:       it.Size,
		SellWizard: true,
	})
	if err != nil {
		return c.fail(tok, SetPricing{}, "Price check failed. Please try again.", err)
	}
	c.RefreshProfile(ctx)
	err = c.finish(tok, SetPriceData{
		PriceRange: PriceRange{
			Low:    res.PriceRange.Low,
			Median: res.PriceRange.Median,
			High:   res.PriceRange.High,
		},
		SuggestedPrice: res.SuggestedPrice,
	}, SetPricing{})
	if err != nil {
		return c.m.State(), err
	}
	return c.m.State(), nil
}

// Save persists the draft. A failure leaves the session on the Pack step
// with everything intact so the save can be retried.
func (c *Controller) Save(ctx context.Context) (State, error) {
	st := c.m.State()
	if st.IsSaving {
		return st, ErrBusy
	}
	if _, err := BuildDraft(st.Item); err != nil {
		_, _ = c.m.DispatchSync(SetError{Error: "Pick a condition before saving."})
		return c.m.State(), err
	}

	tok, st, err := c.begin(kindSave, SetSaving{Loading: true})
	if err != nil {
		return st, err
	}
	// Built from the state the save started on
	draft, err := BuildDraft(st.Item)
	if err != nil {
		return c.fail(tok, SetSaving{}, "Pick a condition before saving.", err)
	}
	draft.ID = st.SavedListingID
	id, err := c.backend.UpsertListing(ctx, draft)
	if err != nil {
		return c.fail(tok, SetSaving{}, "Saving failed. Please try again.", err)
	}
	if !c.m.Complete(tok, SetSaved{ListingID: id}) {
		return c.m.State(), ErrSuperseded
	}
	if err := ClearSession(c.store, c.userID); err != nil {
		c.logger.Warn().Err(err).Msg("failed to clear wizard snapshot after save")
	}
	c.logger.Info().Str("listingId", id).Msg("listing saved")
	return c.m.State(), nil
}

// CollectStudioResults applies photos edited in the Photo Studio since the
// last call.
func (c *Controller) CollectStudioResults() (State, error) {
	results, err := c.mailbox.Take(c.userID)
	if err != nil {
		return c.m.State(), fmt.Errorf("failed to read studio results: %w", err)
	}
	for _, r := range results {
		step := session.Step[State, Action]{
			Actions: []Action{SetEnhancedPhoto{Index: r.PhotoIndex, URL: r.ImageURL}},
		}
		if r.OriginalURL != "" {
			step.Guard = slotHolds(r.PhotoIndex, r.OriginalURL)
		}
		_, _, err := c.m.Apply(step)
		switch {
		case errors.Is(err, session.ErrRejected):
			c.logger.Info().Int("index", r.PhotoIndex).Msg("photo slot changed since studio hand-off, dropping result")
		case err != nil:
			return c.m.State(), err
		}
	}
	return c.m.State(), nil
}

// slotHolds reports whether the photo at index is still url.
func slotHolds(index int, url string) func(State) bool {
	return func(s State) bool {
		photos := s.Item.OriginalPhotos
		return index >= 0 && index < len(photos) && photos[index] == url
	}
}

// RefreshProfile re-reads the profile and updates the free first item flag.
// Failures are logged and otherwise ignored.
func (c *Controller) RefreshProfile(ctx context.Context) {
	p, err := c.backend.GetProfile(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("failed to refresh profile")
		return
	}
	if _, err := c.m.DispatchSync(SetFirstItemFree{Free: !p.FirstItemPassUsed}); err != nil {
		c.logger.Debug().Err(err).Msg("profile refresh after session closed")
	}
}
