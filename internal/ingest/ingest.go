// Package ingest turns inbound webhook submissions, mailbox messages and SMS
// into canonical leads.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leadfollowup_backend/internal/archive"
	"leadfollowup_backend/internal/events"
	"leadfollowup_backend/internal/leads"
	"leadfollowup_backend/platform/apperr"
	"leadfollowup_backend/platform/logger"
	"leadfollowup_backend/platform/validator"

	"github.com/google/uuid"
)

const maxInquiryLength = 2000

var (
	// ErrUnreachable wraps mailbox and classifier failures that abandon a poll tick.
	ErrUnreachable = errors.New("collaborator unreachable")
	// ErrNoRoute is returned when no client owns the inbound identity.
	ErrNoRoute = errors.New("no route for inbound identity")
)

// Store is the lead store surface used by the adapters.
type Store interface {
	GetClientBySlug(ctx context.Context, slug string) (leads.Client, error)
	CreateLead(ctx context.Context, params leads.CreateLeadParams) (leads.Lead, error)
	FindByDedupKey(ctx context.Context, clientID uuid.UUID, dedupKey string) (leads.Lead, error)
	MarkMessageProcessed(ctx context.Context, channel leads.Channel, externalID string) (bool, error)
	IsMessageProcessed(ctx context.Context, channel leads.Channel, externalID string) (bool, error)
}

// Result is the outcome of one ingestion.
type Result struct {
	Lead         leads.Lead
	Deduplicated bool
	Skipped      bool
	Reason       string
}

// Service holds the collaborators shared by every adapter.
type Service struct {
	store    Store
	routes   *RoutingTable
	bus      events.Bus
	archiver archive.Archiver
	val      *validator.Validator
	log      *logger.Logger
	now      func() time.Time
}

func NewService(store Store, routes *RoutingTable, bus events.Bus, archiver archive.Archiver, val *validator.Validator, log *logger.Logger) *Service {
	if routes == nil {
		routes = NewRoutingTable()
	}
	if bus == nil {
		bus = events.NopBus{}
	}
	if archiver == nil {
		archiver = archive.NoopArchiver{}
	}
	if val == nil {
		val = validator.New()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		store:    store,
		routes:   routes,
		bus:      bus,
		archiver: archiver,
		val:      val,
		log:      log,
		now:      time.Now,
	}
}

func (s *Service) clientBySlug(ctx context.Context, slug string) (leads.Client, error) {
	client, err := s.store.GetClientBySlug(ctx, slug)
	if errors.Is(err, leads.ErrNotFound) {
		return leads.Client{}, apperr.NotFound(fmt.Sprintf("client %q not found", slug))
	}
	if err != nil {
		return leads.Client{}, fmt.Errorf("get client %q: %w", slug, err)
	}
	return client, nil
}

func (s *Service) routeClient(ctx context.Context, channel leads.Channel, identity string) (leads.Client, error) {
	slug, ok := s.routes.Resolve(channel, identity)
	if !ok {
		return leads.Client{}, fmt.Errorf("%w: %s %q", ErrNoRoute, channel, identity)
	}
	return s.clientBySlug(ctx, slug)
}

// createLead inserts the lead and treats a dedup conflict as success,
// returning the existing lead when it can be found.
func (s *Service) createLead(ctx context.Context, client leads.Client, params leads.CreateLeadParams) (Result, error) {
	params.ClientID = client.ID
	lead, err := s.store.CreateLead(ctx, params)
	if errors.Is(err, leads.ErrDuplicateKey) {
		result := Result{Deduplicated: true, Reason: "duplicate dedup key"}
		if params.DedupKey != nil {
			existing, findErr := s.store.FindByDedupKey(ctx, client.ID, *params.DedupKey)
			if findErr == nil {
				result.Lead = existing
			}
		}
		return result, nil
	}
	if errors.Is(err, leads.ErrInvalidLead) {
		return Result{}, apperr.Validation(err.Error())
	}
	if err != nil {
		return Result{}, fmt.Errorf("create lead: %w", err)
	}

	s.log.WithContext(ctx).WithClient(client.Slug).Info("lead ingested",
		"lead_id", lead.ID,
		"source", lead.Source,
	)
	s.bus.Publish(ctx, events.LeadIngested{
		BaseEvent:   events.NewBaseEvent(),
		LeadID:      lead.ID,
		ClientID:    lead.ClientID,
		Source:      string(lead.Source),
		SourceLabel: deref(lead.SourceLabel),
	})
	return Result{Lead: lead}, nil
}

// archiveInquiry stores the raw inquiry. Failures are logged only.
func (s *Service) archiveInquiry(ctx context.Context, inquiry archive.Inquiry) {
	if inquiry.Body == "" {
		return
	}
	if _, err := s.archiver.ArchiveInquiry(ctx, inquiry); err != nil {
		s.log.WithContext(ctx).Warn("failed to archive inquiry", "lead_id", inquiry.LeadID, "error", err)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
