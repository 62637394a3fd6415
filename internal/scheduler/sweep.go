package scheduler

import (
	"context"
	"time"

	"estate_crm_backend/platform/logger"
)

const (
	SweepLockKey = "crm:leads:deactivate_stale:lock"
	SweepLockTTL = 10 * time.Minute
)

// LeadSweeper deactivates leads untouched since before.
type LeadSweeper interface {
	DeactivateStale(ctx context.Context, before time.Time) (int64, error)
}

// Sweep runs one stale-lead deactivation pass, optionally guarded by a
// cluster-wide lock.
type Sweep struct {
	leads  LeadSweeper
	lock   *Lock
	window time.Duration
	now    func() time.Time
	log    *logger.Logger
}

func NewSweep(leads LeadSweeper, lock *Lock, window time.Duration, log *logger.Logger) *Sweep {
	return &Sweep{leads: leads, lock: lock, window: window, now: time.Now, log: log}
}

// Run deactivates leads last updated more than window ago. A zero window uses
// the configured default. Returns (0, nil) when another replica holds the lock.
func (s *Sweep) Run(ctx context.Context, window time.Duration) (int64, error) {
	if window <= 0 {
		window = s.window
	}

	if s.lock != nil {
		release, ok, err := s.lock.TryAcquire(ctx)
		if err != nil {
			return 0, err
		}
		if !ok {
			s.log.Debug("stale lead sweep skipped, lock held elsewhere")
			return 0, nil
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				s.log.Warn("failed to release sweep lock", "error", err)
			}
		}()
	}

	before := s.now().UTC().Add(-window)
	return s.leads.DeactivateStale(ctx, before)
}
