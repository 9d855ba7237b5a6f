// Package bootstrap assembles the follow-up engine shared by the api and
// scheduler binaries.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leadfollowup_backend/internal/activity"
	"leadfollowup_backend/internal/archive"
	"leadfollowup_backend/internal/autoreply"
	"leadfollowup_backend/internal/classifier"
	"leadfollowup_backend/internal/email"
	"leadfollowup_backend/internal/events"
	"leadfollowup_backend/internal/followup"
	"leadfollowup_backend/internal/ingest"
	"leadfollowup_backend/internal/leads"
	"leadfollowup_backend/internal/leads/repository"
	"leadfollowup_backend/internal/mailbox"
	"leadfollowup_backend/internal/scheduler"
	"leadfollowup_backend/internal/sms"
	"leadfollowup_backend/platform/config"
	"leadfollowup_backend/platform/db"
	"leadfollowup_backend/platform/logger"
	"leadfollowup_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Engine holds the initialized collaborators.
type Engine struct {
	Store     leads.Store
	Pool      *pgxpool.Pool
	Bus       *events.InMemoryBus
	Validator *validator.Validator
	Ingest    *ingest.Service
	Runner    *scheduler.Runner
}

// Health returns the readiness probe for the configured store.
func (e *Engine) Health() *db.PoolAdapter {
	return db.NewPoolAdapter(e.Pool)
}

// Close releases the database pool, if any, after in-flight event handlers finish.
func (e *Engine) Close() {
	e.Bus.Wait()
	if e.Pool != nil {
		e.Pool.Close()
	}
}

// Build wires the store, ingestion adapters, dispatcher, sweeper and runner.
func Build(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Engine, error) {
	engine := &Engine{Validator: validator.New()}

	switch cfg.GetStoreDriver() {
	case config.StoreDriverMemory:
		engine.Store = repository.NewMemoryStore()
		log.Warn("using in-memory lead store; data is lost on restart")
	default:
		pool, err := openPool(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		engine.Pool = pool
		engine.Store = repository.New(pool)
	}

	engine.Bus = events.NewInMemoryBus(log)
	activity.New(engine.Store, log).RegisterHandlers(engine.Bus)

	archiver, err := archive.New(ctx, cfg)
	if err != nil {
		engine.Close()
		return nil, fmt.Errorf("failed to initialize inquiry archive: %w", err)
	}

	routes, err := ingest.NewRoutingTableFromConfig(cfg)
	if err != nil {
		engine.Close()
		return nil, fmt.Errorf("failed to load routing table: %w", err)
	}
	engine.Ingest = ingest.NewService(engine.Store, routes, engine.Bus, archiver, engine.Validator, log)

	emailSender, err := email.NewSender(cfg)
	if err != nil {
		engine.Close()
		return nil, fmt.Errorf("failed to initialize email sender: %w", err)
	}

	policy := followup.Policy{MinSpacing: cfg.GetFollowupMinSpacing()}
	resolver := followup.NewSenderResolver(engine.Store, followup.SenderDefaults{
		Name:             cfg.GetEmailFromName(),
		Address:          cfg.GetEmailFromAddress(),
		PhoneNumber:      cfg.GetSMSFromNumber(),
		FreemailFallback: cfg.GetSenderFreemailFallback(),
	})
	if cfg.IsAutoreplyEnabled() {
		autoreply.New(engine.Store, resolver, emailSender, cfg.GetEmailFromAddress(), cfg.GetTransportTimeout(), log).
			RegisterHandlers(engine.Bus)
	}

	dispatcher := followup.NewDispatcher(followup.DispatcherDeps{
		Store:            engine.Store,
		Policy:           policy,
		Resolver:         resolver,
		Email:            emailSender,
		SMS:              sms.NewSender(cfg, log),
		Bus:              engine.Bus,
		Log:              log,
		TransportTimeout: cfg.GetTransportTimeout(),
		Now:              time.Now,
	})
	sweeper := followup.NewSweeper(engine.Store, dispatcher, policy, cfg.GetSweepConcurrency(), log)

	var poller scheduler.Poller
	if cfg.IsMailboxEnabled() {
		poller = ingest.NewMailboxPoller(engine.Ingest, mailbox.NewIMAP(cfg, log), classifier.New(cfg))
		log.Info("mailbox polling enabled", "host", cfg.GetIMAPHost(), "folder", cfg.GetIMAPFolder())
	}
	engine.Runner = scheduler.NewRunner(sweeper, poller, log)

	return engine, nil
}

func openPool(ctx context.Context, cfg *config.Config, log *logger.Logger) (*pgxpool.Pool, error) {
	var pool *pgxpool.Pool
	if err := WithRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info("database connection established")

	if err := WithRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, pool)
	}); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}
	log.Info("database migrations complete")
	return pool, nil
}

// WithRetry runs fn up to attempts times with quadratic backoff.
func WithRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return fmt.Errorf("%s: %w", name, lastErr)
}
