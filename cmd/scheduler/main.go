package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"leadfollowup_backend/internal/bootstrap"
	"leadfollowup_backend/internal/scheduler"
	"leadfollowup_backend/platform/config"
	"leadfollowup_backend/platform/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env,
		"sweepInterval", cfg.GetSweepInterval().String(),
		"pollInterval", cfg.GetPollInterval().String(),
	)

	if cfg.GetStoreDriver() == config.StoreDriverMemory {
		log.Warn("scheduler process started with the in-memory store; it will not see leads ingested by the api process")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := bootstrap.Build(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize follow-up engine", "error", err)
		panic("failed to initialize follow-up engine: " + err.Error())
	}
	defer engine.Close()

	sched := scheduler.New(engine.Runner, cfg.GetSweepInterval(), cfg.GetPollInterval(), cfg.GetRunOnStart(), log)
	if err := sched.Start(ctx); err != nil {
		panic("failed to start scheduler: " + err.Error())
	}
	defer sched.Stop()

	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; manual trigger worker disabled")
		<-ctx.Done()
		log.Info("shutdown signal received")
		return
	}

	worker, err := scheduler.NewWorker(cfg, engine.Runner, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}
	worker.Run(ctx)
	log.Info("scheduler stopped")
}
