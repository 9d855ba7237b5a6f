// Package management serves the tenant-facing lead views: listing leads,
// adding a lead by hand, reading a lead timeline and marking a lead recovered.
package management

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"leadfollowup_backend/internal/events"
	"leadfollowup_backend/internal/leads"
	"leadfollowup_backend/platform/apperr"
	"leadfollowup_backend/platform/logger"
	"leadfollowup_backend/platform/phone"

	"github.com/google/uuid"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Repository is the store surface used by the service.
type Repository interface {
	CreateLead(ctx context.Context, params leads.CreateLeadParams) (leads.Lead, error)
	GetLead(ctx context.Context, id uuid.UUID) (leads.Lead, error)
	ListLeads(ctx context.Context, clientID uuid.UUID, limit int) ([]leads.Lead, error)
	MarkRecovered(ctx context.Context, clientID, leadID uuid.UUID) error
	ListActivity(ctx context.Context, clientID, leadID uuid.UUID) ([]leads.Activity, error)
}

type Service struct {
	repo Repository
	bus  events.Bus
	log  *logger.Logger
}

func New(repo Repository, bus events.Bus, log *logger.Logger) *Service {
	if bus == nil {
		bus = events.NopBus{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{repo: repo, bus: bus, log: log}
}

// List returns the client's most recent leads.
func (s *Service) List(ctx context.Context, clientID uuid.UUID, limit int) ([]leads.Lead, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	items, err := s.repo.ListLeads(ctx, clientID, limit)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	return items, nil
}

// CreateInput is a lead typed in by the tenant.
type CreateInput struct {
	Name    string
	Email   string
	Phone   string
	Message string
}

// Create stores a manual lead for the client. It enters the same cadence and
// timeline as ingested leads.
func (s *Service) Create(ctx context.Context, clientID uuid.UUID, in CreateInput) (leads.Lead, error) {
	lead, err := s.repo.CreateLead(ctx, leads.CreateLeadParams{
		ClientID:    clientID,
		Name:        strings.TrimSpace(in.Name),
		Email:       leads.StringPtr(strings.ToLower(in.Email)),
		Phone:       leads.StringPtr(phone.NormalizeE164(in.Phone)),
		Source:      leads.SourceManual,
		InquiryText: leads.StringPtr(in.Message),
		CreatedAt:   time.Now().UTC(),
	})
	if errors.Is(err, leads.ErrInvalidLead) {
		return leads.Lead{}, apperr.Validation(err.Error())
	}
	if err != nil {
		return leads.Lead{}, fmt.Errorf("create lead: %w", err)
	}

	s.log.WithContext(ctx).WithLead(lead.ID.String()).Info("manual lead created", "client_id", clientID)
	s.bus.Publish(ctx, events.LeadIngested{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    lead.ID,
		ClientID:  clientID,
		Source:    string(lead.Source),
	})
	return lead, nil
}

// Get returns a lead owned by the client.
func (s *Service) Get(ctx context.Context, clientID, leadID uuid.UUID) (leads.Lead, error) {
	lead, err := s.repo.GetLead(ctx, leadID)
	if errors.Is(err, leads.ErrNotFound) || (err == nil && lead.ClientID != clientID) {
		return leads.Lead{}, apperr.NotFound("lead not found")
	}
	if err != nil {
		return leads.Lead{}, fmt.Errorf("get lead: %w", err)
	}
	return lead, nil
}

// Activity returns the timeline of a lead owned by the client.
func (s *Service) Activity(ctx context.Context, clientID, leadID uuid.UUID) ([]leads.Activity, error) {
	if _, err := s.Get(ctx, clientID, leadID); err != nil {
		return nil, err
	}
	items, err := s.repo.ListActivity(ctx, clientID, leadID)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	return items, nil
}

// MarkRecovered stops all further follow-ups for the lead. Marking an already
// recovered lead again is a no-op success.
func (s *Service) MarkRecovered(ctx context.Context, clientID, leadID uuid.UUID) (leads.Lead, error) {
	lead, err := s.Get(ctx, clientID, leadID)
	if err != nil {
		return leads.Lead{}, err
	}
	if lead.Recovered {
		return lead, nil
	}

	err = s.repo.MarkRecovered(ctx, clientID, leadID)
	if errors.Is(err, leads.ErrNotFound) {
		return leads.Lead{}, apperr.NotFound("lead not found")
	}
	if err != nil {
		return leads.Lead{}, fmt.Errorf("mark recovered: %w", err)
	}
	lead.Recovered = true

	s.log.WithContext(ctx).WithLead(leadID.String()).Info("lead marked recovered")
	s.bus.Publish(ctx, events.LeadRecovered{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    leadID,
		ClientID:  clientID,
	})
	return lead, nil
}
