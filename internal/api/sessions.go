package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/raine/vintifi/internal/adapter"
	"github.com/raine/vintifi/internal/auth"
	"github.com/raine/vintifi/internal/session"
	"github.com/raine/vintifi/internal/studio"
	"github.com/raine/vintifi/internal/wizard"
)

type wizardView struct {
	State   wizard.State      `json:"state"`
	Summary string            `json:"summary"`
	Copy    map[string]string `json:"copy"`
}

func newWizardView(st wizard.State) wizardView {
	return wizardView{State: st, Summary: wizard.Summary(st.Item), Copy: wizard.CopyFields(st.Item)}
}

type studioView struct {
	State   studio.State       `json:"state"`
	Tier    studio.Tier        `json:"tier"`
	Credits int                `json:"credits"`
	Locked  []studio.Operation `json:"locked"`
}

// sessionStatus maps a session error onto an HTTP status.
func sessionStatus(err error) int {
	var validation *wizard.ValidationError
	var remote *adapter.APIError
	switch {
	case errors.Is(err, wizard.ErrBusy),
		errors.Is(err, wizard.ErrSuperseded),
		errors.Is(err, studio.ErrSuperseded),
		errors.Is(err, studio.ErrAlreadyProcessing),
		errors.Is(err, session.ErrDisposed):
		return http.StatusConflict
	case errors.As(err, &validation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, studio.ErrTierLocked):
		return http.StatusForbidden
	case errors.Is(err, studio.ErrStepFailed):
		return http.StatusBadGateway
	case errors.As(err, &remote) && remote.Status > 0:
		return remote.Status
	}
	return http.StatusBadRequest
}

// writeSessionError reports err together with the state it left behind.
// The state's own error message wins over the Go error text.
func writeSessionError(w http.ResponseWriter, err error, msg string, state any) {
	if msg == "" {
		msg = err.Error()
	}
	writeJSON(w, sessionStatus(err), map[string]any{"error": msg, "state": state})
}

func (s *Server) wizardFor(w http.ResponseWriter, user auth.User) (*wizard.Controller, bool) {
	c, err := s.wizards.Get(user.ID)
	if err != nil {
		log.Error().Err(err).Str("userId", user.ID).Msg("failed to open wizard session")
		writeError(w, http.StatusInternalServerError, "Failed to open wizard")
		return nil, false
	}
	return c, true
}

func (s *Server) respondWizard(w http.ResponseWriter, st wizard.State, err error) {
	if err != nil {
		writeSessionError(w, err, st.Error, newWizardView(st))
		return
	}
	writeJSON(w, http.StatusOK, newWizardView(st))
}

// wizardOp adapts a controller call that takes no input to a route.
func (s *Server) wizardOp(op func(ctx context.Context, c *wizard.Controller) (wizard.State, error)) userHandler {
	return func(w http.ResponseWriter, r *http.Request, user auth.User) {
		c, ok := s.wizardFor(w, user)
		if !ok {
			return
		}
		st, err := op(r.Context(), c)
		s.respondWizard(w, st, err)
	}
}

// handleWizardState returns the session after folding in profile changes
// and any photos finished in the studio.
func (s *Server) handleWizardState(w http.ResponseWriter, r *http.Request, user auth.User) {
	c, ok := s.wizardFor(w, user)
	if !ok {
		return
	}
	if _, err := s.profile(user); err != nil {
		log.Warn().Err(err).Str("userId", user.ID).Msg("failed to ensure profile")
	}
	c.RefreshProfile(r.Context())
	st, err := c.CollectStudioResults()
	s.respondWizard(w, st, err)
}

func (s *Server) handleWizardAction(w http.ResponseWriter, r *http.Request, user auth.User) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	a, err := wizard.DecodeClientAction(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	c, ok := s.wizardFor(w, user)
	if !ok {
		return
	}
	// Step changes go through the controller so the step gate applies
	switch a.(type) {
	case wizard.NextStep:
		st, err := c.Next()
		s.respondWizard(w, st, err)
		return
	case wizard.PrevStep:
		st, err := c.Prev()
		s.respondWizard(w, st, err)
		return
	}
	st, err := c.Dispatch(a)
	s.respondWizard(w, st, err)
}

func (s *Server) handleWizardImport(w http.ResponseWriter, r *http.Request, user auth.User) {
	var req adapter.ImportRequest
	if !decodeBody(w, r, &req) {
		return
	}
	c, ok := s.wizardFor(w, user)
	if !ok {
		return
	}
	st, err := c.Import(r.Context(), req.URL)
	s.respondWizard(w, st, err)
}

func (s *Server) handleWizardPhoto(w http.ResponseWriter, r *http.Request, user auth.User) {
	filename, data, ok := readUpload(w, r)
	if !ok {
		return
	}
	c, ok := s.wizardFor(w, user)
	if !ok {
		return
	}
	st, err := c.AddPhoto(r.Context(), filename, data)
	s.respondWizard(w, st, err)
}

func (s *Server) handleWizardEnhance(w http.ResponseWriter, r *http.Request, user auth.User) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid photo index")
		return
	}
	c, ok := s.wizardFor(w, user)
	if !ok {
		return
	}
	st, err := c.QuickEnhance(r.Context(), index)
	s.respondWizard(w, st, err)
}

// ---------------------------------------------------------------------------
// Photo Studio
// ---------------------------------------------------------------------------

func (s *Server) studioFor(w http.ResponseWriter, user auth.User) (*studio.Machine, bool) {
	m, err := s.studios.Get(user.ID)
	if err != nil {
		log.Error().Err(err).Str("userId", user.ID).Msg("failed to open studio session")
		writeError(w, http.StatusInternalServerError, "Failed to open studio")
		return nil, false
	}
	return m, true
}

// tierOf reads the user's subscription tier. Profile failures fall back to
// free so nothing is unlocked by accident.
func (s *Server) tierOf(user auth.User) studio.Tier {
	p, err := s.profile(user)
	if err != nil {
		log.Warn().Err(err).Str("userId", user.ID).Msg("failed to load tier")
		return studio.TierFree
	}
	return studio.Tier(p.SubscriptionTier)
}

func (s *Server) newStudioView(st studio.State, tier studio.Tier) studioView {
	locked := studio.LockedOperations(st.Pipeline, tier)
	if locked == nil {
		locked = []studio.Operation{}
	}
	return studioView{State: st, Tier: tier, Credits: studio.PipelineCredits(st.Pipeline), Locked: locked}
}

func (s *Server) respondStudio(w http.ResponseWriter, st studio.State, tier studio.Tier, err error) {
	if err != nil {
		writeSessionError(w, err, st.Error, s.newStudioView(st, tier))
		return
	}
	writeJSON(w, http.StatusOK, s.newStudioView(st, tier))
}

func (s *Server) handleStudioState(w http.ResponseWriter, r *http.Request, user auth.User) {
	m, ok := s.studioFor(w, user)
	if !ok {
		return
	}
	s.respondStudio(w, m.State(), s.tierOf(user), nil)
}

type presetView struct {
	Name       string             `json:"name"`
	Label      string             `json:"label"`
	Operations []studio.Operation `json:"operations"`
	Credits    int                `json:"credits"`
	Locked     bool               `json:"locked"`
}

func (s *Server) handleStudioPresets(w http.ResponseWriter, r *http.Request, user auth.User) {
	tier := s.tierOf(user)
	presets := studio.Presets()
	out := make([]presetView, 0, len(presets))
	for _, p := range presets {
		out = append(out, presetView{
			Name:       p.Name,
			Label:      p.Label,
			Operations: p.Operations,
			Credits:    p.Credits(),
			Locked:     studio.IsLockedTier(p.RequiredTier(), tier),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"presets": out})
}

func (s *Server) handleStudioAction(w http.ResponseWriter, r *http.Request, user auth.User) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	a, err := studio.DecodeClientAction(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	m, ok := s.studioFor(w, user)
	if !ok {
		return
	}
	st, err := studio.Dispatch(m, a)
	s.respondStudio(w, st, s.tierOf(user), err)
}

// handleStudioClose tears the studio session down when the user leaves the
// studio. A pipeline still running is dropped.
func (s *Server) handleStudioClose(w http.ResponseWriter, r *http.Request, user auth.User) {
	s.studios.Remove(user.ID)
	writeJSON(w, http.StatusOK, map[string]bool{"closed": true})
}

type studioRunRequest struct {
	// ReturnPhotoIndex is the wizard photo slot the result goes back to.
	ReturnPhotoIndex *int   `json:"return_photo_index"`
	GarmentContext   string `json:"garment_context"`
}

func (s *Server) handleStudioRun(w http.ResponseWriter, r *http.Request, user auth.User) {
	var req studioRunRequest
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}
	m, ok := s.studioFor(w, user)
	if !ok {
		return
	}
	returnIndex := -1
	if req.ReturnPhotoIndex != nil && *req.ReturnPhotoIndex >= 0 {
		returnIndex = *req.ReturnPhotoIndex
	}
	tier := s.tierOf(user)
	runner := studio.NewRunner(s.backendFor(user), s.mailbox)
	st, err := runner.Run(r.Context(), m, studio.RunRequest{
		Tier:             tier,
		ReturnPhotoIndex: returnIndex,
		GarmentContext:   req.GarmentContext,
	})
	s.respondStudio(w, st, tier, err)
}

func (s *Server) handleStudioPreset(w http.ResponseWriter, r *http.Request, user auth.User) {
	preset, found := studio.FindPreset(r.PathValue("name"))
	if !found {
		writeError(w, http.StatusNotFound, "Unknown preset")
		return
	}
	m, ok := s.studioFor(w, user)
	if !ok {
		return
	}
	tier := s.tierOf(user)
	if studio.IsLockedTier(preset.RequiredTier(), tier) {
		st, _ := m.DispatchSync(studio.OpenUpgradeModal{})
		s.respondStudio(w, st, tier, studio.ErrTierLocked)
		return
	}
	st, err := studio.Dispatch(m, preset.Actions()...)
	s.respondStudio(w, st, tier, err)
}
