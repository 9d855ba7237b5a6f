package scheduler

import (
	"context"
	"errors"
	"fmt"

	"leadfollowup_backend/platform/config"
	"leadfollowup_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// Worker consumes manual trigger tasks and runs them through the Runner.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	runner *Runner
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, runner *Runner, log *logger.Logger) (*Worker, error) {
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
		concurrency = 2
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	w := &Worker{
		server: server,
		mux:    asynq.NewServeMux(),
		runner: runner,
		log:    log,
	}
	w.register()
	return w, nil
}

func (w *Worker) register() {
	w.mux.HandleFunc(TaskFollowupSweep, w.handleSweep)
	w.mux.HandleFunc(TaskFollowupSweepClient, w.handleSweepClient)
	w.mux.HandleFunc(TaskMailboxPoll, w.handleMailboxPoll)
}

func (w *Worker) handleSweep(ctx context.Context, _ *asynq.Task) error {
	_, err := w.runner.RunSweep(ctx)
	return err
}

func (w *Worker) handleSweepClient(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseSweepClientPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	if payload.ClientSlug == "" {
		return fmt.Errorf("%w: missing client slug", asynq.SkipRetry)
	}
	_, err = w.runner.RunSweepClient(ctx, payload.ClientSlug)
	return err
}

func (w *Worker) handleMailboxPoll(ctx context.Context, _ *asynq.Task) error {
	_, err := w.runner.RunMailboxPoll(ctx)
	if errors.Is(err, ErrMailboxDisabled) {
		return nil
	}
	return err
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
