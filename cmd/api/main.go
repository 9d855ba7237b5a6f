package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leadfollowup_backend/internal/admin"
	"leadfollowup_backend/internal/bootstrap"
	apphttp "leadfollowup_backend/internal/http"
	"leadfollowup_backend/internal/http/router"
	leadshandler "leadfollowup_backend/internal/leads/handler"
	"leadfollowup_backend/internal/scheduler"
	"leadfollowup_backend/internal/webhook"
	"leadfollowup_backend/platform/config"
	"leadfollowup_backend/platform/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr, "store", cfg.GetStoreDriver())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Engine
	// ========================================================================

	engine, err := bootstrap.Build(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize follow-up engine", "error", err)
		panic("failed to initialize follow-up engine: " + err.Error())
	}
	defer engine.Close()

	// The memory store is process-local, so the cadence has to run here.
	if cfg.GetStoreDriver() == config.StoreDriverMemory {
		sched := scheduler.New(engine.Runner, cfg.GetSweepInterval(), cfg.GetPollInterval(), cfg.GetRunOnStart(), log)
		if err := sched.Start(ctx); err != nil {
			panic("failed to start in-process scheduler: " + err.Error())
		}
		defer sched.Stop()
	}

	var enqueuer scheduler.Enqueuer
	triggerClient, closeTriggers := initTriggerClient(cfg, log)
	if triggerClient != nil {
		enqueuer = triggerClient
		defer closeTriggers()
	}

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   engine.Health(),
		EventBus: engine.Bus,
		Modules: []apphttp.Module{
			webhook.NewModule(engine.Ingest, cfg, log),
			leadshandler.NewModule(engine.Store, engine.Bus, engine.Validator, log),
			admin.NewModule(engine.Store, engine.Runner, enqueuer, engine.Bus, engine.Validator, log),
		},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func initTriggerClient(cfg config.SchedulerConfig, log *logger.Logger) (*scheduler.Client, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; async admin triggers disabled")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
}
