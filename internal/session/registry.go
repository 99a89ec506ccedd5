package session

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Stopper is anything with a worker that must be stopped on shutdown.
type Stopper interface {
	Stop()
}

// Registry lazily creates one session per user and stops them all on
// shutdown. Sessions not fetched for a while can be closed with RemoveIdle.
type Registry[T Stopper] struct {
	name     string
	mu       sync.Mutex
	sessions map[string]T
	lastUsed map[string]time.Time
	create   func(userID string) (T, error)
	now      func() time.Time
}

// NewRegistry returns a registry that builds missing sessions with create.
func NewRegistry[T Stopper](name string, create func(userID string) (T, error)) *Registry[T] {
	return &Registry[T]{
		name:     name,
		sessions: make(map[string]T),
		lastUsed: make(map[string]time.Time),
		create:   create,
		now:      time.Now,
	}
}

// Get returns the user's session, creating it on first use.
func (r *Registry[T]) Get(userID string) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastUsed[userID] = r.now()
	if s, ok := r.sessions[userID]; ok {
		return s, nil
	}
	s, err := r.create(userID)
	if err != nil {
		delete(r.lastUsed, userID)
		var zero T
		return zero, err
	}
	r.sessions[userID] = s
	log.Info().Str("registry", r.name).Str("userId", userID).Msg("session created")
	return s, nil
}

// Remove stops and forgets the user's session, if any. A later Get creates a
// fresh one.
func (r *Registry[T]) Remove(userID string) {
	r.mu.Lock()
	s, ok := r.sessions[userID]
	delete(r.sessions, userID)
	delete(r.lastUsed, userID)
	r.mu.Unlock()
	if ok {
		s.Stop()
		log.Info().Str("registry", r.name).Str("userId", userID).Msg("session closed")
	}
}

// RemoveIdle stops every session not fetched within maxIdle and returns
// how many were closed.
func (r *Registry[T]) RemoveIdle(maxIdle time.Duration) int {
	cutoff := r.now().Add(-maxIdle)
	r.mu.Lock()
	var idle []T
	for userID, used := range r.lastUsed {
		if used.After(cutoff) {
			continue
		}
		if s, ok := r.sessions[userID]; ok {
			idle = append(idle, s)
		}
		delete(r.sessions, userID)
		delete(r.lastUsed, userID)
	}
	r.mu.Unlock()

	for _, s := range idle {
		s.Stop()
	}
	if len(idle) > 0 {
		log.Info().Str("registry", r.name).Int("count", len(idle)).Dur("maxIdle", maxIdle).Msg("closed idle sessions")
	}
	return len(idle)
}

// Len returns the number of live sessions.
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Shutdown stops all session workers.
func (r *Registry[T]) Shutdown() {
	r.mu.Lock()
	sessions := make([]T, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.sessions = make(map[string]T)
	r.lastUsed = make(map[string]time.Time)
	r.mu.Unlock()

	// Stop outside the lock to avoid blocking Get
	for _, s := range sessions {
		s.Stop()
	}
	log.Info().Str("registry", r.name).Int("count", len(sessions)).Msg("stopped all session workers")
}
