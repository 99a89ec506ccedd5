package maintenance

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raine/vintifi/internal/storage"
)

type countingStore struct {
	mu     sync.Mutex
	resets int
	prunes int
	err    error
}

func (c *countingStore) ResetMonthlyCredits(time.Time) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resets++
	return 1, c.err
}

func (c *countingStore) PruneExpired(time.Time) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prunes++
	return 2, c.err
}

func (c *countingStore) counts() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resets, c.prunes
}

type countingSessions struct {
	mu     sync.Mutex
	sweeps int
}

func (c *countingSessions) CloseIdleSessions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweeps++
	return 1
}

func (c *countingSessions) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sweeps
}

func TestRun_TicksUntilCancelled(t *testing.T) {
	store := &countingStore{}
	sessions := &countingSessions{}
	svc := NewService(store).WithSessions(sessions)
	svc.startDelay = time.Millisecond
	svc.resetInterval = 5 * time.Millisecond
	svc.pruneInterval = 5 * time.Millisecond
	svc.sweepInterval = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	assert.Eventually(t, func() bool {
		resets, prunes := store.counts()
		return resets >= 3 && prunes >= 3 && sessions.count() >= 3
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	store := &countingStore{}
	svc := NewService(store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, svc.Run(ctx))

	resets, prunes := store.counts()
	assert.Zero(t, resets)
	assert.Zero(t, prunes)
}

func TestRunOnce_ErrorsAreLogged(t *testing.T) {
	store := &countingStore{err: errors.New("db locked")}
	NewService(store).RunOnce()
	resets, prunes := store.counts()
	assert.Equal(t, 1, resets)
	assert.Equal(t, 1, prunes)
}

func TestRunOnce_AgainstSQLite(t *testing.T) {
	key, err := storage.DeriveKey("test")
	require.NoError(t, err)
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"), key)
	require.NoError(t, err)
	defer store.Close()

	_, err = store.EnsureProfile("u1", "")
	require.NoError(t, err)
	_, err = store.DeductCredits("u1", 2, "enhance", "")
	require.NoError(t, err)
	require.NoError(t, store.SetValue("snapshot", "x", time.Minute))

	svc := NewService(store)
	svc.now = func() time.Time { return time.Now().Add(40 * 24 * time.Hour) }
	svc.RunOnce()

	p, err := store.GetProfile("u1")
	require.NoError(t, err)
	assert.Equal(t, storage.MonthlyAllowance("free"), p.CreditsBalance)
}
