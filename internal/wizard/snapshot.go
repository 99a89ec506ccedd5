package wizard

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/raine/vintifi/internal/session"
)

// SessionKey is the snapshot key; snapshots are scoped per user by suffix.
const SessionKey = "vintifi_sell_wizard_v2"

// SnapshotTTL bounds how long an abandoned wizard can be recovered.
const SnapshotTTL = 7 * 24 * time.Hour

// SnapshotKey returns the snapshot key for userID.
func SnapshotKey(userID string) string {
	return SessionKey + ":" + userID
}

// SessionRecoveryInit loads the user's snapshot. A missing or unparseable
// snapshot yields initial. Busy flags are always cleared: an interrupted
// call is never resumed.
func SessionRecoveryInit(store session.Store, userID string, initial State) State {
	raw, ok, err := store.GetValue(SnapshotKey(userID))
	if err != nil {
		log.Warn().Err(err).Str("userId", userID).Msg("failed to read wizard snapshot")
		return initial
	}
	if !ok || raw == "" {
		return initial
	}
	var parsed State
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		log.Warn().Err(err).Str("userId", userID).Msg("discarding unparseable wizard snapshot")
		return initial
	}
	return normalise(parsed).Idle()
}

// normalise repairs snapshots written by older builds so the parallel-array
// and step-range invariants hold.
func normalise(s State) State {
	if s.CurrentStep < StepAddItem || s.CurrentStep > StepPack {
		s.CurrentStep = StepAddItem
	}
	if s.CompletedSteps == nil {
		s.CompletedSteps = []int{}
	}
	if s.Direction != -1 {
		s.Direction = 1
	}
	if s.Item.OriginalPhotos == nil {
		s.Item.OriginalPhotos = []string{}
	}
	if len(s.Item.OriginalPhotos) > MaxPhotos {
		s.Item.OriginalPhotos = s.Item.OriginalPhotos[:MaxPhotos]
	}
	enhanced := make([]*string, len(s.Item.OriginalPhotos))
	copy(enhanced, s.Item.EnhancedPhotos)
	s.Item.EnhancedPhotos = enhanced
	if s.Item.Hashtags == nil {
		s.Item.Hashtags = []string{}
	}
	if !s.Item.PriceStrategy.Valid() {
		s.Item.PriceStrategy = StrategyBalanced
	}
	return s
}

// SaveSession persists s as the user's snapshot.
func SaveSession(store session.Store, userID string, s State) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal wizard snapshot: %w", err)
	}
	if err := store.SetValue(SnapshotKey(userID), string(data), SnapshotTTL); err != nil {
		return fmt.Errorf("failed to save wizard snapshot: %w", err)
	}
	return nil
}

// ClearSession removes the user's snapshot.
func ClearSession(store session.Store, userID string) error {
	if err := store.DeleteValue(SnapshotKey(userID)); err != nil {
		return fmt.Errorf("failed to clear wizard snapshot: %w", err)
	}
	return nil
}
