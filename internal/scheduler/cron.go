package scheduler

import (
	"context"
	"fmt"
	"time"

	"estate_crm_backend/platform/config"
	"estate_crm_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// Cron enqueues the stale-lead sweep task on the configured schedule.
type Cron struct {
	scheduler *asynq.Scheduler
	schedule  string
	queue     string
	log       *logger.Logger
}

func NewCron(cfg config.SchedulerConfig, log *logger.Logger) (*Cron, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	schedule := cfg.GetLeadDeactivationCron()
	if schedule == "" {
		schedule = "@every 1h"
	}

	return &Cron{
		scheduler: asynq.NewScheduler(opt, &asynq.SchedulerOpts{Location: time.UTC}),
		schedule:  schedule,
		queue:     queueName(cfg),
		log:       log,
	}, nil
}

func (c *Cron) Run(ctx context.Context) error {
	task, err := NewDeactivateStaleLeadsTask(DeactivateStaleLeadsPayload{})
	if err != nil {
		return err
	}

	entryID, err := c.scheduler.Register(c.schedule, task, asynq.Queue(c.queue), asynq.Unique(30*time.Minute))
	if err != nil {
		return fmt.Errorf("register %s: %w", TaskDeactivateStaleLeads, err)
	}
	c.log.Info("stale lead sweep scheduled", "cron", c.schedule, "entry", entryID)

	if err := c.scheduler.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	c.scheduler.Shutdown()
	return nil
}
