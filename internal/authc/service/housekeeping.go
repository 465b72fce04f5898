package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/realmauth/internal/authc/store"
)

// HousekeepingService periodically prunes stale failed-attempt records so the
// history of unlocked accounts does not grow without bound.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration

	// Retention is how long failed attempts of unlocked accounts are kept.
	// Zero keeps them until a success or an unlock resets them, so lockout
	// counts consecutive failures however far apart they are.
	Retention time.Duration
	Now       func() time.Time

	// Internal channels for lifecycle management
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a new housekeeping service. A non-positive
// interval defaults to 1 hour and a non-positive retention disables pruning.
func NewHousekeepingService(store store.Store, logger *slog.Logger, interval, retention time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}
	if retention < 0 {
		retention = 0
	}

	return &HousekeepingService{
		Store:     store,
		Logger:    logger,
		Interval:  interval,
		Retention: retention,
		Now:       time.Now,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start begins the background worker. It is non-blocking and should be
// called after migrations have been applied. Call Stop() to shut it down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval, "retention", s.Retention)
}

// Stop gracefully shuts down the background worker, blocking until any
// in-progress cleanup has finished.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Run cleanup immediately on startup
	s.cleanup()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCh:
			return
		}
	}
}

func (s *HousekeepingService) cleanup() {
	ctx := context.Background()
	s.Logger.Debug("starting housekeeping cleanup")

	var deleted int64
	if s.Retention > 0 {
		var err error
		cutoff := s.Now().Add(-s.Retention)
		deleted, err = s.Store.FailedAttempts().DeleteUnlockedBefore(ctx, cutoff)
		if err != nil {
			s.Logger.Error("failed to prune failed attempts", "error", err)
			return
		}
	}

	locked, err := s.Store.Accounts().ListLockedAccounts(ctx)
	if err != nil {
		s.Logger.Error("failed to list locked accounts", "error", err)
		return
	}

	s.Logger.Info("housekeeping cleanup completed",
		"pruned_failed_attempts", deleted,
		"locked_accounts", len(locked),
	)
}
