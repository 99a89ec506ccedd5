package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/raine/vintifi/internal/apierror"
)

const (
	signatureTolerance = 5 * time.Minute
	// Stripe retries deliveries for up to three days.
	seenEventTTL = 72 * time.Hour
)

var (
	ErrNoSignature      = errors.New("missing stripe signature")
	ErrInvalidSignature = errors.New("stripe signature mismatch")
	ErrStaleSignature   = errors.New("stripe signature timestamp outside tolerance")
)

// VerifySignature checks a Stripe-Signature header ("t=...,v1=...") against
// the payload.
func VerifySignature(payload []byte, header, secret string, now time.Time) error {
	if header == "" {
		return ErrNoSignature
	}
	var timestamp string
	var signatures []string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			timestamp = v
		case "v1":
			signatures = append(signatures, v)
		}
	}
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil || len(signatures) == 0 {
		return ErrNoSignature
	}
	if d := now.Sub(time.Unix(ts, 0)); d > signatureTolerance || d < -signatureTolerance {
		return ErrStaleSignature
	}

	expected := Sign(payload, secret, ts)
	for _, sig := range signatures {
		if hmac.Equal([]byte(sig), []byte(expected)) {
			return nil
		}
	}
	return ErrInvalidSignature
}

// Sign returns the v1 signature Stripe would send for payload at ts.
func Sign(payload []byte, secret string, ts int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

type event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type sessionObject struct {
	ID       string            `json:"id"`
	Mode     string            `json:"mode"`
	Metadata map[string]string `json:"metadata"`
}

type subscriptionObject struct {
	ID       string            `json:"id"`
	Status   string            `json:"status"`
	Metadata map[string]string `json:"metadata"`
}

// HandleWebhook verifies and applies one Stripe event. Events already
// applied are acknowledged without being applied again.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if s.webhookSecret == "" {
		return apierror.New(http.StatusServiceUnavailable, "Stripe not configured")
	}
	if err := VerifySignature(payload, signature, s.webhookSecret, s.now()); err != nil {
		return apierror.Wrap(http.StatusBadRequest, "Webhook Error: "+err.Error(), err)
	}

	var ev event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return apierror.Wrap(http.StatusBadRequest, "Webhook Error: invalid payload", err)
	}
	logger := log.With().Str("eventId", ev.ID).Str("eventType", ev.Type).Logger()

	seenKey := "stripe-event:" + ev.ID
	if _, seen, err := s.store.GetValue(seenKey); err != nil {
		return fmt.Errorf("failed to check event: %w", err)
	} else if seen {
		logger.Info().Msg("duplicate stripe event ignored")
		return nil
	}

	if err := s.apply(ev); err != nil {
		// Still acknowledged.
		logger.Error().Err(err).Msg("failed to apply stripe event")
		return nil
	}
	if err := s.store.SetValue(seenKey, "1", seenEventTTL); err != nil {
		logger.Warn().Err(err).Msg("failed to record stripe event")
	}
	logger.Info().Msg("stripe event applied")
	return nil
}

func (s *Service) apply(ev event) error {
	switch ev.Type {
	case "checkout.session.completed":
		var obj sessionObject
		if err := json.Unmarshal(ev.Data.Object, &obj); err != nil {
			return err
		}
		userID := obj.Metadata["user_id"]
		if userID == "" {
			return fmt.Errorf("session %s has no user_id", obj.ID)
		}
		switch {
		case obj.Mode == "payment" && obj.Metadata["type"] == TypeCreditPack:
			n := packCredits(obj.Metadata["price_key"])
			if n == 0 {
				return fmt.Errorf("session %s has unknown pack %q", obj.ID, obj.Metadata["price_key"])
			}
			_, err := s.store.AddCredits(userID, n, "credit_pack_purchase", fmt.Sprintf("Credit pack: +%d credits", n))
			return err
		case obj.Mode == "subscription":
			return s.store.SetTier(userID, tierOrPro(obj.Metadata["tier"]))
		}

	case "customer.subscription.updated":
		var obj subscriptionObject
		if err := json.Unmarshal(ev.Data.Object, &obj); err != nil {
			return err
		}
		if obj.Metadata["user_id"] == "" || (obj.Status != "active" && obj.Status != "trialing") {
			return nil
		}
		return s.store.SetTier(obj.Metadata["user_id"], tierOrPro(obj.Metadata["tier"]))

	case "customer.subscription.deleted":
		var obj subscriptionObject
		if err := json.Unmarshal(ev.Data.Object, &obj); err != nil {
			return err
		}
		if obj.Metadata["user_id"] == "" {
			return nil
		}
		return s.store.SetTier(obj.Metadata["user_id"], "free")

	case "invoice.payment_failed":
		log.Warn().Str("eventId", ev.ID).Msg("invoice payment failed")
	}
	return nil
}

func tierOrPro(tier string) string {
	if tier == "" {
		return "pro"
	}
	return tier
}
