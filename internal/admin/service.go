package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"leadfollowup_backend/internal/events"
	"leadfollowup_backend/internal/leads"
	"leadfollowup_backend/platform/apperr"
	"leadfollowup_backend/platform/phone"

	"github.com/google/uuid"
)

// DefaultAgedLeadHours makes a seeded lead eligible for its first follow-up
// on the next sweep.
const DefaultAgedLeadHours = 25

// Store is the lead store surface used by operator actions.
type Store interface {
	CreateClient(ctx context.Context, params leads.CreateClientParams) (leads.Client, error)
	GetClientBySlug(ctx context.Context, slug string) (leads.Client, error)
	CreateLead(ctx context.Context, params leads.CreateLeadParams) (leads.Lead, error)
}

// Service implements tenant provisioning and test lead seeding.
type Service struct {
	store Store
	bus   events.Bus
	now   func() time.Time
}

func NewService(store Store, bus events.Bus) *Service {
	if bus == nil {
		bus = events.NopBus{}
	}
	return &Service{store: store, bus: bus, now: time.Now}
}

// ProvisionClient creates a tenant.
func (s *Service) ProvisionClient(ctx context.Context, slug, name string, ownerUserID *uuid.UUID) (leads.Client, error) {
	client, err := s.store.CreateClient(ctx, leads.CreateClientParams{
		Slug:        slug,
		Name:        strings.TrimSpace(name),
		OwnerUserID: ownerUserID,
	})
	if errors.Is(err, leads.ErrSlugTaken) {
		return leads.Client{}, apperr.Conflict(fmt.Sprintf("client slug %q already exists", slug))
	}
	if err != nil {
		return leads.Client{}, fmt.Errorf("create client: %w", err)
	}
	return client, nil
}

// AgedLeadParams describe a backdated test lead.
type AgedLeadParams struct {
	Name   string
	Email  string
	Phone  string
	Source leads.Source
	Hours  int
}

// SeedAgedLead inserts a lead whose creation time lies Hours in the past so
// the follow-up cycle can be exercised without waiting.
func (s *Service) SeedAgedLead(ctx context.Context, slug string, params AgedLeadParams) (leads.Lead, error) {
	client, err := s.store.GetClientBySlug(ctx, slug)
	if errors.Is(err, leads.ErrNotFound) {
		return leads.Lead{}, apperr.NotFound(fmt.Sprintf("client %q not found", slug))
	}
	if err != nil {
		return leads.Lead{}, fmt.Errorf("get client %q: %w", slug, err)
	}

	hours := params.Hours
	if hours <= 0 {
		hours = DefaultAgedLeadHours
	}
	source := params.Source
	if source == "" {
		source = leads.SourceManual
	}
	if params.Email == "" && params.Phone == "" {
		return leads.Lead{}, apperr.Validation("email or phone is required")
	}

	lead, err := s.store.CreateLead(ctx, leads.CreateLeadParams{
		ClientID:  client.ID,
		Name:      params.Name,
		Email:     leads.StringPtr(strings.ToLower(params.Email)),
		Phone:     leads.StringPtr(phone.NormalizeE164(params.Phone)),
		Source:    source,
		CreatedAt: s.now().Add(-time.Duration(hours) * time.Hour),
	})
	if errors.Is(err, leads.ErrInvalidLead) {
		return leads.Lead{}, apperr.Validation(err.Error())
	}
	if err != nil {
		return leads.Lead{}, fmt.Errorf("create aged lead: %w", err)
	}

	s.bus.Publish(ctx, events.LeadIngested{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    lead.ID,
		ClientID:  lead.ClientID,
		Source:    string(lead.Source),
	})
	return lead, nil
}
