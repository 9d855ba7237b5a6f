package scheduler

import (
	"context"
	"errors"
	"sync"

	"leadfollowup_backend/internal/followup"
	"leadfollowup_backend/internal/ingest"
	"leadfollowup_backend/platform/logger"
)

// ErrMailboxDisabled is returned by RunMailboxPoll when no mailbox is configured.
var ErrMailboxDisabled = errors.New("mailbox polling is not configured")

// Sweeper runs follow-up sweeps.
type Sweeper interface {
	Sweep(ctx context.Context) (followup.SweepReport, error)
	SweepClient(ctx context.Context, slug string) (followup.SweepReport, error)
}

// Poller runs one mailbox tick.
type Poller interface {
	Poll(ctx context.Context) (ingest.PollReport, error)
}

// Runner executes cycles inline. Periodic ticks, the asynq worker and the
// operator endpoints all go through the same Runner, so at most one sweep and
// one poll run at a time in a process.
type Runner struct {
	sweeper Sweeper
	poller  Poller
	log     *logger.Logger

	sweepMu sync.Mutex
	pollMu  sync.Mutex
}

// NewRunner builds a Runner. poller may be nil when mailbox polling is disabled.
func NewRunner(sweeper Sweeper, poller Poller, log *logger.Logger) *Runner {
	if log == nil {
		log = logger.Nop()
	}
	return &Runner{sweeper: sweeper, poller: poller, log: log}
}

// PollingEnabled reports whether a mailbox poller is configured.
func (r *Runner) PollingEnabled() bool {
	return r.poller != nil
}

func (r *Runner) RunSweep(ctx context.Context) (followup.SweepReport, error) {
	r.sweepMu.Lock()
	defer r.sweepMu.Unlock()

	report, err := r.sweeper.Sweep(ctx)
	if err != nil {
		r.log.WithContext(ctx).Error("follow-up sweep aborted", "error", err)
		return report, err
	}
	return report, nil
}

func (r *Runner) RunSweepClient(ctx context.Context, slug string) (followup.SweepReport, error) {
	r.sweepMu.Lock()
	defer r.sweepMu.Unlock()

	report, err := r.sweeper.SweepClient(ctx, slug)
	if err != nil {
		r.log.WithContext(ctx).WithClient(slug).Warn("client sweep failed", "error", err)
		return report, err
	}
	return report, nil
}

func (r *Runner) RunMailboxPoll(ctx context.Context) (ingest.PollReport, error) {
	if r.poller == nil {
		return ingest.PollReport{}, ErrMailboxDisabled
	}

	r.pollMu.Lock()
	defer r.pollMu.Unlock()

	report, err := r.poller.Poll(ctx)
	if err != nil {
		if ingest.IsUnreachable(err) {
			r.log.WithContext(ctx).Warn("mailbox poll abandoned", "error", err)
		} else {
			r.log.WithContext(ctx).Error("mailbox poll failed", "error", err)
		}
		return report, err
	}
	return report, nil
}
