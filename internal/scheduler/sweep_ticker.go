package scheduler

import (
	"context"
	"time"

	"estate_crm_backend/platform/logger"
)

const defaultSweepInterval = time.Hour

// SweepTicker runs the stale-lead sweep on a fixed interval in-process. It is
// the fallback when no redis is configured for the asynq scheduler.
type SweepTicker struct {
	sweep    *Sweep
	log      *logger.Logger
	interval time.Duration
}

func NewSweepTicker(sweep *Sweep, log *logger.Logger, interval time.Duration) *SweepTicker {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &SweepTicker{sweep: sweep, log: log, interval: interval}
}

func (t *SweepTicker) Run(ctx context.Context) {
	if t == nil || t.sweep == nil {
		return
	}

	t.tick(ctx)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.tick(ctx)
		}
	}
}

func (t *SweepTicker) tick(ctx context.Context) {
	deactivated, err := t.sweep.Run(ctx, 0)
	if err != nil {
		t.log.Warn("stale lead sweep failed", "error", err)
		return
	}

	if deactivated > 0 {
		t.log.Info("stale lead sweep deactivated leads", "deactivated", deactivated)
	}
}
