package api

import (
	"errors"
	"net/http"

	"github.com/raine/vintifi/internal/adapter"
	"github.com/raine/vintifi/internal/apierror"
	"github.com/raine/vintifi/internal/auth"
	"github.com/raine/vintifi/internal/storage"
)

func toProfile(p *storage.Profile) *adapter.Profile {
	return &adapter.Profile{
		UserID:                  p.UserID,
		Email:                   p.Email,
		SubscriptionTier:        p.SubscriptionTier,
		CreditsBalance:          p.CreditsBalance,
		CreditsMonthlyAllowance: p.CreditsMonthlyAllowance,
		FirstItemPassUsed:       p.FirstItemPassUsed,
	}
}

// profile loads the user's profile, creating it on first sight.
func (s *Server) profile(user auth.User) (*adapter.Profile, error) {
	p, err := s.Store.EnsureProfile(user.ID, user.Email)
	if err != nil {
		return nil, apierror.Wrap(http.StatusInternalServerError, "Failed to load profile", err)
	}
	return toProfile(p), nil
}

// saveListing upserts a draft owned by user and tells the admin about it.
func (s *Server) saveListing(user auth.User, draft adapter.ListingDraft) (string, error) {
	id, err := s.Store.UpsertListing(user.ID, draft)
	if errors.Is(err, storage.ErrNotFound) {
		return "", apierror.Wrap(http.StatusNotFound, "Listing not found", err)
	}
	if err != nil {
		return "", apierror.Wrap(http.StatusInternalServerError, "Failed to save listing", err)
	}
	s.Notifier.ListingSaved(user.ID, id, draft.Title, draft.Price)
	return id, nil
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request, user auth.User) {
	p, err := s.profile(user)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleListListings(w http.ResponseWriter, r *http.Request, user auth.User) {
	listings, err := s.Store.ListListings(user.ID)
	if err != nil {
		writeServiceError(w, r, apierror.Wrap(http.StatusInternalServerError, "Failed to load listings", err))
		return
	}
	if listings == nil {
		listings = []adapter.Listing{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"listings": listings})
}

func (s *Server) handleUpsertListing(w http.ResponseWriter, r *http.Request, user auth.User) {
	var draft adapter.ListingDraft
	if !decodeBody(w, r, &draft) {
		return
	}
	id, err := s.saveListing(user, draft)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, adapter.UpsertResult{ID: id})
}

func (s *Server) handleGetListing(w http.ResponseWriter, r *http.Request, user auth.User) {
	l, err := s.Store.GetListing(user.ID, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, apierror.Wrap(http.StatusInternalServerError, "Failed to load listing", err))
		return
	}
	if l == nil {
		writeError(w, http.StatusNotFound, "Listing not found")
		return
	}
	writeJSON(w, http.StatusOK, l)
}
