// Package scheduler drives the periodic follow-up sweep and mailbox poll and
// carries manual triggers over an asynq queue.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"leadfollowup_backend/platform/logger"
)

const (
	defaultSweepInterval = time.Hour
	defaultPollInterval  = 10 * time.Minute
)

// ErrAlreadyStarted is returned by Start on a running scheduler.
var ErrAlreadyStarted = errors.New("scheduler already started")

// Scheduler owns the two periodic loops.
type Scheduler struct {
	runner        *Runner
	sweepInterval time.Duration
	pollInterval  time.Duration
	runOnStart    bool
	log           *logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

func New(runner *Runner, sweepInterval, pollInterval time.Duration, runOnStart bool, log *logger.Logger) *Scheduler {
	if sweepInterval <= 0 {
		sweepInterval = defaultSweepInterval
	}
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Scheduler{
		runner:        runner,
		sweepInterval: sweepInterval,
		pollInterval:  pollInterval,
		runOnStart:    runOnStart,
		log:           log,
	}
}

// Start launches the sweep loop and, when a mailbox is configured, the poll
// loop. Both stop when ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrAlreadyStarted
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true

	s.wg.Add(1)
	go s.loop(loopCtx, "followup sweep", s.sweepInterval, func(ctx context.Context) {
		_, _ = s.runner.RunSweep(ctx)
	})

	if s.runner.PollingEnabled() {
		s.wg.Add(1)
		go s.loop(loopCtx, "mailbox poll", s.pollInterval, func(ctx context.Context) {
			_, _ = s.runner.RunMailboxPoll(ctx)
		})
	}

	s.log.Info("scheduler started",
		"sweep_interval", s.sweepInterval.String(),
		"poll_interval", s.pollInterval.String(),
		"polling", s.runner.PollingEnabled(),
	)
	return nil
}

// Stop cancels both loops and waits for an in-flight cycle to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, name string, interval time.Duration, run func(context.Context)) {
	defer s.wg.Done()

	if s.runOnStart {
		s.tick(ctx, name, run)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx, name, run)
		}
	}
}

// tick runs one cycle. A panic aborts that cycle only; the next tick retries.
func (s *Scheduler) tick(ctx context.Context, name string, run func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("scheduler tick panicked", "loop", name, "panic", r)
		}
	}()
	run(ctx)
}
