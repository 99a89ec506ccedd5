// Package credits charges users for backend operations, honouring the
// free first item pass.
package credits

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/raine/vintifi/internal/apierror"
	"github.com/raine/vintifi/internal/auth"
	"github.com/raine/vintifi/internal/metrics"
	"github.com/raine/vintifi/internal/storage"
)

// Store is the profile and ledger persistence charging needs.
type Store interface {
	EnsureProfile(userID, email string) (*storage.Profile, error)
	DeductCredits(userID string, amount int, operation, description string) (int, error)
	AddCredits(userID string, amount int, operation, description string) (int, error)
	MarkFirstItemPassUsed(userID string) error
}

// Request describes what is being paid for.
type Request struct {
	Operation   string
	Description string
	Amount      int
	// AllowFirstItemPass lets an unused first item pass cover the cost.
	AllowFirstItemPass bool
	// InsufficientMessage replaces the default 402 message.
	InsufficientMessage string
	// Gate, when set, runs against the profile before anything is charged.
	Gate func(p *storage.Profile) error
}

// Charge is a deduction in flight. Settle it with Commit on success or
// Refund on failure.
type Charge struct {
	store   Store
	metrics *metrics.Metrics
	userID  string
	op      string
	// Credits is what was deducted; zero when the pass covered it.
	Credits       int
	FirstItemPass bool
	Profile       *storage.Profile
}

// Begin loads (or creates) the user's profile and takes payment. A balance
// that is too low yields a 402 *apierror.Error wrapping
// storage.ErrInsufficientCredits.
func Begin(store Store, m *metrics.Metrics, user auth.User, req Request) (*Charge, error) {
	profile, err := store.EnsureProfile(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	if req.Gate != nil {
		if err := req.Gate(profile); err != nil {
			return nil, err
		}
	}
	c := &Charge{store: store, metrics: m, userID: user.ID, op: req.Operation, Profile: profile}

	if req.AllowFirstItemPass && !profile.FirstItemPassUsed {
		c.FirstItemPass = true
		log.Info().Str("userId", user.ID).Str("operation", req.Operation).Msg("using first item pass")
		return c, nil
	}

	if _, err := store.DeductCredits(user.ID, req.Amount, req.Operation, req.Description); err != nil {
		if errors.Is(err, storage.ErrInsufficientCredits) {
			msg := req.InsufficientMessage
			if msg == "" {
				msg = "Insufficient credits"
			}
			return nil, apierror.Wrap(http.StatusPaymentRequired, msg, err)
		}
		return nil, fmt.Errorf("failed to deduct credits: %w", err)
	}
	c.Credits = req.Amount
	m.CreditsSpent(req.Operation, req.Amount)
	return c, nil
}

// Commit consumes the first item pass if it paid for the operation.
func (c *Charge) Commit() {
	if !c.FirstItemPass {
		return
	}
	if err := c.store.MarkFirstItemPassUsed(c.userID); err != nil {
		log.Warn().Err(err).Str("userId", c.userID).Msg("failed to mark first item pass used")
	}
}

// Refund returns deducted credits. The pass is left unused.
func (c *Charge) Refund() {
	if c.Credits == 0 {
		return
	}
	if _, err := c.store.AddCredits(c.userID, c.Credits, "refund", "Refund: "+c.op); err != nil {
		log.Error().Err(err).Str("userId", c.userID).Int("credits", c.Credits).Msg("failed to refund credits")
		return
	}
	c.Credits = 0
}
