package wizard

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raine/vintifi/internal/session"
)

type failingStore struct{}

func (failingStore) GetValue(string) (string, bool, error) {
	return "", false, errors.New("disk on fire")
}
func (failingStore) SetValue(string, string, time.Duration) error { return errors.New("disk on fire") }
func (failingStore) DeleteValue(string) error                     { return errors.New("disk on fire") }

func TestSnapshotKeyIsPerUser(t *testing.T) {
	assert.Equal(t, "vintifi_sell_wizard_v2:u1", SnapshotKey("u1"))
	assert.NotEqual(t, SnapshotKey("u1"), SnapshotKey("u2"))
}

func TestSessionRecovery_MissingSnapshotYieldsInitial(t *testing.T) {
	store := session.NewMemoryStore()
	initial := InitialState()
	initial.FirstItemFree = false
	assert.Equal(t, initial, SessionRecoveryInit(store, "u1", initial))
}

func TestSessionRecovery_GarbageYieldsInitial(t *testing.T) {
	store := session.NewMemoryStore()
	require.NoError(t, store.SetValue(SnapshotKey("u1"), "{not json", time.Hour))
	assert.Equal(t, InitialState(), SessionRecoveryInit(store, "u1", InitialState()))
}

func TestSessionRecovery_StoreErrorYieldsInitial(t *testing.T) {
	assert.Equal(t, InitialState(), SessionRecoveryInit(failingStore{}, "u1", InitialState()))
}

func TestSessionRecovery_RoundTripClearsBusyFlags(t *testing.T) {
	store := session.NewMemoryStore()
	s := reduceAll(InitialState(),
		SetItemData{Patch: ItemPatch{Title: strPtr("Nike Air Max"), Brand: strPtr("Nike")}},
		AddOriginalPhoto{URL: "a"},
		SetEnhancedPhoto{Index: 0, URL: "a2"},
		NextStep{},
		SetOptimising{Loading: true},
		SetPricing{Loading: true},
		SetSaving{Loading: true},
	)
	require.NoError(t, SaveSession(store, "u1", s))

	got := SessionRecoveryInit(store, "u1", InitialState())
	assert.False(t, got.Busy())
	assert.Equal(t, StepPhotos, got.CurrentStep)
	assert.Equal(t, "Nike Air Max", got.Item.Title)
	require.Len(t, got.Item.EnhancedPhotos, 1)
	assert.Equal(t, "a2", *got.Item.EnhancedPhotos[0])

	// Other users don't see it
	assert.Equal(t, InitialState(), SessionRecoveryInit(store, "u2", InitialState()))
}

func TestSessionRecovery_RepairsParallelArrays(t *testing.T) {
	store := session.NewMemoryStore()
	raw := `{"currentStep":9,"direction":0,"item":{"originalPhotos":["a","b"],"enhancedPhotos":["a2"],"priceStrategy":"weird"}}`
	require.NoError(t, store.SetValue(SnapshotKey("u1"), raw, time.Hour))

	got := SessionRecoveryInit(store, "u1", InitialState())
	assert.Equal(t, StepAddItem, got.CurrentStep)
	assert.Equal(t, 1, got.Direction)
	require.Len(t, got.Item.EnhancedPhotos, 2)
	assert.Equal(t, "a2", *got.Item.EnhancedPhotos[0])
	assert.Nil(t, got.Item.EnhancedPhotos[1])
	assert.Equal(t, StrategyBalanced, got.Item.PriceStrategy)
	assert.NotNil(t, got.CompletedSteps)
}

func TestClearSession(t *testing.T) {
	store := session.NewMemoryStore()
	require.NoError(t, SaveSession(store, "u1", InitialState()))
	require.NoError(t, ClearSession(store, "u1"))
	_, ok, err := store.GetValue(SnapshotKey("u1"))
	require.NoError(t, err)
	assert.False(t, ok)
}
