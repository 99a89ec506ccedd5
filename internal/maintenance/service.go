// Package maintenance runs the periodic housekeeping jobs.
package maintenance

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// ResetInterval is how often profiles are checked for a due monthly
	// credit reset.
	ResetInterval = time.Hour

	// PruneInterval is how often expired snapshots and mailbox messages are
	// deleted.
	PruneInterval = 6 * time.Hour

	// SweepInterval is how often idle live sessions are closed.
	SweepInterval = 5 * time.Minute

	// StartDelay lets the server come up before the first pass.
	StartDelay = 5 * time.Second
)

type Store interface {
	ResetMonthlyCredits(now time.Time) (int, error)
	PruneExpired(now time.Time) (int, error)
}

// Sessions closes live sessions that have gone idle.
type Sessions interface {
	CloseIdleSessions() int
}

// Service is the background housekeeping loop.
type Service struct {
	store    Store
	sessions Sessions
	now      func() time.Time

	resetInterval time.Duration
	pruneInterval time.Duration
	sweepInterval time.Duration
	startDelay    time.Duration
}

func NewService(store Store) *Service {
	return &Service{
		store:         store,
		now:           time.Now,
		resetInterval: ResetInterval,
		pruneInterval: PruneInterval,
		sweepInterval: SweepInterval,
		startDelay:    StartDelay,
	}
}

// WithSessions adds the idle session sweep to the loop.
func (s *Service) WithSessions(sessions Sessions) *Service {
	s.sessions = sessions
	return s
}

// Run blocks until ctx is cancelled. The error return fits errgroup and is
// always nil.
func (s *Service) Run(ctx context.Context) error {
	log.Info().Dur("resetInterval", s.resetInterval).Dur("pruneInterval", s.pruneInterval).Msg("starting maintenance service")

	select {
	case <-ctx.Done():
		return nil
	case <-time.After(s.startDelay):
	}
	s.RunOnce()

	resetTicker := time.NewTicker(s.resetInterval)
	defer resetTicker.Stop()

	pruneTicker := time.NewTicker(s.pruneInterval)
	defer pruneTicker.Stop()

	sweepTicker := time.NewTicker(s.sweepInterval)
	defer sweepTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("maintenance service stopped")
			return nil
		case <-resetTicker.C:
			s.resetCredits()
		case <-pruneTicker.C:
			s.prune()
		case <-sweepTicker.C:
			s.sweep()
		}
	}
}

// RunOnce runs every job once.
func (s *Service) RunOnce() {
	s.resetCredits()
	s.prune()
	s.sweep()
}

func (s *Service) resetCredits() {
	n, err := s.store.ResetMonthlyCredits(s.now())
	if err != nil {
		log.Error().Err(err).Msg("failed to reset monthly credits")
		return
	}
	if n > 0 {
		log.Info().Int("profiles", n).Msg("reset monthly credits")
	}
}

func (s *Service) prune() {
	n, err := s.store.PruneExpired(s.now())
	if err != nil {
		log.Error().Err(err).Msg("failed to prune expired values")
		return
	}
	if n > 0 {
		log.Info().Int("values", n).Msg("pruned expired values")
	}
}

func (s *Service) sweep() {
	if s.sessions == nil {
		return
	}
	if n := s.sessions.CloseIdleSessions(); n > 0 {
		log.Info().Int("sessions", n).Msg("closed idle sessions")
	}
}
