// Package billing creates Stripe checkout sessions for subscriptions and
// credit packs and applies the resulting webhook events to profiles.
package billing

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/raine/vintifi/internal/adapter"
	"github.com/raine/vintifi/internal/apierror"
	"github.com/raine/vintifi/internal/auth"
	"github.com/raine/vintifi/internal/notify"
)

const (
	TypeSubscription = "subscription"
	TypeCreditPack   = "credit_pack"

	trialDays     = 7
	defaultOrigin = "https://vintifi.app"
)

// PriceKeys lists every price the app sells.
var PriceKeys = []string{
	"pro_monthly", "pro_annual",
	"business_monthly", "business_annual",
	"pack_10", "pack_30", "pack_75",
}

// Checkout is the part of the Stripe API checkout needs.
type Checkout interface {
	FindCustomer(ctx context.Context, email string) (*Customer, error)
	HasSubscription(ctx context.Context, customerID string) (bool, error)
	CreateCheckoutSession(ctx context.Context, p SessionParams) (*CheckoutSession, error)
}

// Store is the profile access webhook handling needs.
type Store interface {
	SetTier(userID, tier string) error
	AddCredits(userID string, amount int, operation, description string) (int, error)
	GetValue(key string) (string, bool, error)
	SetValue(key, value string, ttl time.Duration) error
}

type Service struct {
	stripe        Checkout
	store         Store
	prices        map[string]string
	webhookSecret string
	notifier      notify.Notifier
	now           func() time.Time
}

type ServiceOpts struct {
	// Stripe is nil when billing is not configured.
	Stripe        Checkout
	Store         Store
	Prices        map[string]string
	WebhookSecret string
	Notifier      notify.Notifier
}

func NewService(opts ServiceOpts) *Service {
	n := opts.Notifier
	if n == nil {
		n = notify.Noop{}
	}
	return &Service{
		stripe:        opts.Stripe,
		store:         opts.Store,
		prices:        opts.Prices,
		webhookSecret: opts.WebhookSecret,
		notifier:      n,
		now:           time.Now,
	}
}

// resolvePrice maps a checkout request to its price key and Stripe price
// id.
func (s *Service) resolvePrice(req adapter.CheckoutRequest) (string, string, error) {
	var key string
	switch req.Type {
	case TypeSubscription:
		tier := strings.ToLower(req.Tier)
		if tier == "" {
			tier = "pro"
		}
		period := "monthly"
		if req.Annual {
			period = "annual"
		}
		key = tier + "_" + period
		if s.prices[key] == "" {
			return "", "", apierror.Newf(http.StatusBadRequest, "Price not configured for %s %s", tier, period)
		}
	case TypeCreditPack:
		pack := req.Pack
		if pack == "" {
			pack = "10"
		}
		key = "pack_" + strings.TrimPrefix(pack, "pack_")
		if s.prices[key] == "" {
			return "", "", apierror.Newf(http.StatusBadRequest, "Price not configured for pack %s", pack)
		}
	default:
		return "", "", apierror.New(http.StatusBadRequest, "price_id required")
	}
	return key, s.prices[key], nil
}

// CreateCheckout starts a hosted checkout and returns its URL. First-time
// subscribers get a trial.
func (s *Service) CreateCheckout(ctx context.Context, user auth.User, origin string, req adapter.CheckoutRequest) (*adapter.CheckoutResult, error) {
	if s.stripe == nil {
		return nil, apierror.New(http.StatusServiceUnavailable, "Stripe not configured")
	}
	if user.Email == "" {
		return nil, apierror.New(http.StatusUnauthorized, "Not authenticated")
	}
	key, priceID, err := s.resolvePrice(req)
	if err != nil {
		return nil, err
	}

	customer, err := s.stripe.FindCustomer(ctx, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up customer: %w", err)
	}
	firstTime := true
	if customer != nil {
		subscribed, err := s.stripe.HasSubscription(ctx, customer.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to look up subscriptions: %w", err)
		}
		firstTime = !subscribed
	}

	if origin == "" {
		origin = defaultOrigin
	}
	params := SessionParams{
		PriceID:    priceID,
		Mode:       "payment",
		SuccessURL: origin + "/dashboard?checkout=success",
		CancelURL:  origin + "/settings",
		Metadata:   map[string]string{"type": req.Type, "user_id": user.ID, "price_key": key},
	}
	if customer != nil {
		params.CustomerID = customer.ID
	} else {
		params.CustomerEmail = user.Email
	}
	if req.Type == TypeSubscription {
		tier := strings.TrimSuffix(strings.TrimSuffix(key, "_monthly"), "_annual")
		params.Mode = "subscription"
		params.Metadata["tier"] = tier
		params.SubscriptionMetadata = map[string]string{"user_id": user.ID, "tier": tier}
		if firstTime {
			params.TrialDays = trialDays
		}
	}

	session, err := s.stripe.CreateCheckoutSession(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	log.Info().
		Str("userId", user.ID).
		Str("priceKey", key).
		Bool("trial", params.TrialDays > 0).
		Str("sessionId", session.ID).
		Msg("checkout session created")
	s.notifier.CheckoutCreated(user.ID, req.Type, key)
	return &adapter.CheckoutResult{URL: session.URL}, nil
}

// packCredits reads the credit count out of a pack price key.
func packCredits(key string) int {
	n, err := strconv.Atoi(strings.TrimPrefix(key, "pack_"))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
