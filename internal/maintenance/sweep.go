// Package maintenance runs periodic housekeeping jobs for the license server.
package maintenance

import (
	"context"
	"errors"
	"sync"

	"github.com/CallismartLtd/smart-license-server-sub003/internal/metrics"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// SweepStore defines the interface for expired-token cleanup.
type SweepStore interface {
	DeleteExpiredDownloadTokens(ctx context.Context) (int64, error)
}

// TokenSweeper periodically purges download tokens past their expiry.
// The sweep is best-effort housekeeping: verification re-checks expiry
// on every request, so a missed sweep never affects correctness.
type TokenSweeper struct {
	store   SweepStore
	metrics *metrics.Metrics
	cron    *cron.Cron
	logger  zerolog.Logger
	mu      sync.Mutex
	running bool
}

// NewTokenSweeper creates a new token sweeper. metrics may be nil.
func NewTokenSweeper(store SweepStore, m *metrics.Metrics, logger zerolog.Logger) *TokenSweeper {
	return &TokenSweeper{
		store:   store,
		metrics: m,
		cron:    cron.New(),
		logger:  logger.With().Str("component", "token_sweeper").Logger(),
	}
}

// Start begins the hourly sweep schedule.
func (s *TokenSweeper) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("token sweeper already running")
	}

	_, err := s.cron.AddFunc("@hourly", s.RunOnce)
	if err != nil {
		return err
	}

	s.cron.Start()
	s.running = true

	s.logger.Info().Msg("token sweeper started (hourly)")
	return nil
}

// Stop stops the sweeper gracefully.
func (s *TokenSweeper) Stop() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}

	s.running = false
	s.logger.Info().Msg("stopping token sweeper")
	return s.cron.Stop()
}

// RunOnce executes a single sweep. Failures are logged and swallowed.
func (s *TokenSweeper) RunOnce() {
	ctx := context.Background()

	deleted, err := s.store.DeleteExpiredDownloadTokens(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("expired token sweep failed")
		return
	}

	if s.metrics != nil {
		s.metrics.TokensSwept.Add(float64(deleted))
	}
	if deleted > 0 {
		s.logger.Info().Int64("deleted", deleted).Msg("expired download tokens purged")
	}
}
