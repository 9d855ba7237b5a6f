package followup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"leadfollowup_backend/internal/leads"
	"leadfollowup_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const defaultSweepConcurrency = 8

// SweepStore is the store surface the sweep needs.
type SweepStore interface {
	ListClients(ctx context.Context) ([]leads.Client, error)
	GetClientBySlug(ctx context.Context, slug string) (leads.Client, error)
	ListDueCandidates(ctx context.Context, clientID uuid.UUID, asOf time.Time) ([]leads.Lead, error)
}

// LeadDispatcher sends one follow-up.
type LeadDispatcher interface {
	SendFollowup(ctx context.Context, leadID uuid.UUID) Outcome
}

// SweepReport summarises one sweep.
type SweepReport struct {
	StartedAt       time.Time         `json:"startedAt"`
	FinishedAt      time.Time         `json:"finishedAt"`
	Clients         int               `json:"clients"`
	Candidates      int               `json:"candidates"`
	Sent            int               `json:"sent"`
	Ineligible      int               `json:"ineligible"`
	LostRace        int               `json:"lostRace"`
	TransportFailed int               `json:"transportFailed"`
	NoContact       int               `json:"noContact"`
	StoreFailed     int               `json:"storeFailed"`
	ClientErrors    map[string]string `json:"clientErrors,omitempty"`
}

func (r *SweepReport) record(o Outcome) {
	switch o {
	case OutcomeSent:
		r.Sent++
	case OutcomeIneligible:
		r.Ineligible++
	case OutcomeLostRace:
		r.LostRace++
	case OutcomeTransportFailed:
		r.TransportFailed++
	case OutcomeNoContact:
		r.NoContact++
	case OutcomeStoreFailed:
		r.StoreFailed++
	}
}

func (r *SweepReport) merge(other SweepReport) {
	r.Clients += other.Clients
	r.Candidates += other.Candidates
	r.Sent += other.Sent
	r.Ineligible += other.Ineligible
	r.LostRace += other.LostRace
	r.TransportFailed += other.TransportFailed
	r.NoContact += other.NoContact
	r.StoreFailed += other.StoreFailed
	for slug, msg := range other.ClientErrors {
		r.addClientError(slug, msg)
	}
}

func (r *SweepReport) addClientError(slug, msg string) {
	if r.ClientErrors == nil {
		r.ClientErrors = make(map[string]string)
	}
	r.ClientErrors[slug] = msg
}

// Sweeper walks every client and dispatches follow-ups to eligible leads.
type Sweeper struct {
	store       SweepStore
	dispatcher  LeadDispatcher
	policy      Policy
	concurrency int
	log         *logger.Logger
	now         func() time.Time
}

func NewSweeper(store SweepStore, dispatcher LeadDispatcher, policy Policy, concurrency int, log *logger.Logger) *Sweeper {
	if concurrency <= 0 {
		concurrency = defaultSweepConcurrency
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Sweeper{
		store:       store,
		dispatcher:  dispatcher,
		policy:      policy,
		concurrency: concurrency,
		log:         log,
		now:         time.Now,
	}
}

// SetClock replaces the time source used to compute due leads.
func (s *Sweeper) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Sweep runs one pass over every client. Only a failure to list clients is
// returned; per-client and per-lead failures are counted in the report.
func (s *Sweeper) Sweep(ctx context.Context) (SweepReport, error) {
	report := SweepReport{StartedAt: s.now()}

	clients, err := s.store.ListClients(ctx)
	if err != nil {
		return report, fmt.Errorf("list clients: %w", err)
	}

	for _, client := range clients {
		if ctx.Err() != nil {
			break
		}
		report.merge(s.sweepClient(ctx, client))
	}

	report.FinishedAt = s.now()
	s.log.WithContext(ctx).Info("follow-up sweep finished",
		"clients", report.Clients,
		"candidates", report.Candidates,
		"sent", report.Sent,
		"transport_failed", report.TransportFailed,
		"lost_race", report.LostRace,
		"client_errors", len(report.ClientErrors),
	)
	return report, nil
}

// SweepClient runs one pass over a single client.
func (s *Sweeper) SweepClient(ctx context.Context, slug string) (SweepReport, error) {
	report := SweepReport{StartedAt: s.now()}

	client, err := s.store.GetClientBySlug(ctx, slug)
	if err != nil {
		return report, fmt.Errorf("get client %q: %w", slug, err)
	}
	report.merge(s.sweepClient(ctx, client))
	report.FinishedAt = s.now()
	return report, nil
}

func (s *Sweeper) sweepClient(ctx context.Context, client leads.Client) SweepReport {
	report := SweepReport{Clients: 1}
	log := s.log.WithContext(ctx).WithClient(client.Slug)

	now := s.now()
	candidates, err := s.store.ListDueCandidates(ctx, client.ID, s.policy.DueBefore(now))
	if err != nil {
		log.Error("failed to list due candidates", "error", err)
		report.addClientError(client.Slug, err.Error())
		return report
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.concurrency)

	for _, lead := range candidates {
		if !s.policy.IsEligible(lead, now) {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		report.Candidates++
		leadID := lead.ID
		g.Go(func() error {
			outcome := s.dispatch(ctx, leadID)
			mu.Lock()
			report.record(outcome)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return report
}

// dispatch isolates one lead: a panicking dispatch is counted as a store
// failure and the lead stays eligible for the next sweep.
func (s *Sweeper) dispatch(ctx context.Context, leadID uuid.UUID) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			s.log.WithContext(ctx).WithLead(leadID.String()).Error("follow-up dispatch panicked", "panic", r)
			outcome = OutcomeStoreFailed
		}
	}()
	return s.dispatcher.SendFollowup(ctx, leadID)
}
