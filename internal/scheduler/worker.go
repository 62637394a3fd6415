package scheduler

import (
	"context"
	"fmt"

	"estate_crm_backend/platform/config"
	"estate_crm_backend/platform/logger"

	"github.com/hibiken/asynq"
)

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, sweep *Sweep, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	w := &Worker{
		server: server,
		mux:    newServeMux(sweep, log),
		log:    log,
	}
	return w, nil
}

func newServeMux(sweep *Sweep, log *logger.Logger) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	h := &deactivationHandler{sweep: sweep, log: log}
	mux.HandleFunc(TaskDeactivateStaleLeads, h.handle)
	return mux
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

type deactivationHandler struct {
	sweep *Sweep
	log   *logger.Logger
}

func (h *deactivationHandler) handle(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseDeactivateStaleLeadsPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	deactivated, err := h.sweep.Run(ctx, payload.window(0))
	if err != nil {
		return err
	}
	if deactivated > 0 {
		h.log.Info("stale lead task deactivated leads", "deactivated", deactivated)
	}
	return nil
}
