// Package session runs the periodic session sweep.
package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"voice-journal/backend/internal/session/domain"
)

// SweepFunc performs one sweep pass.
type SweepFunc func(ctx context.Context) (domain.SweepResult, error)

// Sweeper calls a SweepFunc on a fixed interval until its context is cancelled.
type Sweeper struct {
	sweep    SweepFunc
	interval time.Duration
	logger   *zap.Logger
}

// NewSweeper returns a Sweeper. interval <= 0 makes Run return immediately.
func NewSweeper(sweep SweepFunc, interval time.Duration, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{sweep: sweep, interval: interval, logger: logger}
}

// Run sweeps once at start and then every interval. Failures are logged and the loop continues.
// It returns nil when ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	if s.interval <= 0 {
		s.logger.Info("session sweeper disabled")
		return nil
	}
	s.logger.Info("session sweeper started", zap.Duration("interval", s.interval))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		s.runOnce(ctx)
		select {
		case <-ctx.Done():
			s.logger.Info("session sweeper stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Sweeper) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	res, err := s.sweep(ctx)
	if err != nil {
		s.logger.Error("session sweep failed", zap.Error(err))
		return
	}
	if res.Deleted > 0 || res.Deactivated > 0 {
		s.logger.Info("session sweep",
			zap.Int64("deleted", res.Deleted),
			zap.Int64("deactivated", res.Deactivated))
	}
}
