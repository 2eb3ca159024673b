package nl2sql

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/duckmesh/mesquery/internal/observability"
)

type refresher interface {
	RefreshMetadata(ctx context.Context) error
}

// RefreshScheduler reloads schema metadata on a cron schedule.
type RefreshScheduler struct {
	cron    *cron.Cron
	target  refresher
	timeout time.Duration
	logger  *slog.Logger
}

func NewRefreshScheduler(target refresher, schedule string, timeout time.Duration, logger *slog.Logger) (*RefreshScheduler, error) {
	if target == nil {
		return nil, fmt.Errorf("refresh target is required")
	}
	s := &RefreshScheduler{
		cron:    cron.New(),
		target:  target,
		timeout: timeout,
		logger:  observability.LoggerOrDefault(logger),
	}
	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, fmt.Errorf("parse refresh schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *RefreshScheduler) Start() {
	s.cron.Start()
	s.logger.Info("metadata refresh scheduler started")
}

// Stop waits for a running refresh to finish.
func (s *RefreshScheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("metadata refresh scheduler stopped")
}

func (s *RefreshScheduler) run() {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	if err := s.target.RefreshMetadata(ctx); err != nil {
		s.logger.Warn("scheduled metadata refresh failed", "error", err)
	}
}
