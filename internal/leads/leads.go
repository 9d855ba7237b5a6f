// Package leads provides the lead store bounded context.
// This file defines the public API of the context: the canonical lead and
// client records and the Store contract every backend implements.
package leads

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxFollowups is the number of follow-ups a lead can receive before it is
// permanently ineligible.
const MaxFollowups = 3

var (
	// ErrNotFound is returned when a client, owner or lead does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateKey is returned by CreateLead when the dedup key already exists for the client.
	ErrDuplicateKey = errors.New("duplicate dedup key")
	// ErrSlugTaken is returned by CreateClient when the slug is already in use.
	ErrSlugTaken = errors.New("client slug already exists")
	// ErrInvalidLead is returned when create parameters violate the data model.
	ErrInvalidLead = errors.New("invalid lead")
)

// Source identifies the channel a lead arrived through.
type Source string

const (
	SourceManual      Source = "manual"
	SourceWebhookForm Source = "webhook_form"
	SourceEmail       Source = "email"
	SourceSMS         Source = "sms"
)

// ParseSource maps a free-form label to a Source. Both the stored value
// ("webhook_form") and the display form ("WebhookForm") are accepted.
func ParseSource(label string) (Source, bool) {
	normalized := strings.ToLower(strings.TrimSpace(label))
	normalized = strings.NewReplacer("-", "", "_", "", " ", "").Replace(normalized)
	switch normalized {
	case "manual":
		return SourceManual, true
	case "webhookform", "webhook", "form":
		return SourceWebhookForm, true
	case "email", "mail":
		return SourceEmail, true
	case "sms", "text", "messages":
		return SourceSMS, true
	}
	return "", false
}

// Valid reports whether s is one of the known sources.
func (s Source) Valid() bool {
	switch s {
	case SourceManual, SourceWebhookForm, SourceEmail, SourceSMS:
		return true
	}
	return false
}

// Channel is an inbound or outbound messaging channel.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Client is a tenant owning an isolated lead collection.
type Client struct {
	ID          uuid.UUID
	Slug        string
	Name        string
	OwnerUserID *uuid.UUID
	CreatedAt   time.Time
}

// Owner is the read-only view of the user that claimed a client.
type Owner struct {
	ID    uuid.UUID
	Email string
	Name  string
}

// Lead is the canonical lead record.
type Lead struct {
	ID             uuid.UUID
	ClientID       uuid.UUID
	Name           string
	Email          *string
	Phone          *string
	Source         Source
	SourceLabel    *string
	InquiryText    *string
	DedupKey       *string
	CreatedAt      time.Time
	FollowupsSent  int
	Recovered      bool
	LastFollowupAt *time.Time
}

// ContactFor returns the address used to reach the lead on channel.
func (l Lead) ContactFor(channel Channel) string {
	switch channel {
	case ChannelSMS:
		return deref(l.Phone)
	default:
		return deref(l.Email)
	}
}

// CreateLeadParams are the fields an ingestion adapter supplies.
// CreatedAt is optional; the store stamps the current time when it is zero.
type CreateLeadParams struct {
	ClientID    uuid.UUID
	Name        string
	Email       *string
	Phone       *string
	Source      Source
	SourceLabel *string
	InquiryText *string
	DedupKey    *string
	CreatedAt   time.Time
}

// Validate checks the parameters against the data model.
func (p CreateLeadParams) Validate() error {
	if p.ClientID == uuid.Nil {
		return fmt.Errorf("%w: client id is required", ErrInvalidLead)
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidLead)
	}
	if !p.Source.Valid() {
		return fmt.Errorf("%w: unknown source %q", ErrInvalidLead, p.Source)
	}
	if p.DedupKey != nil && strings.TrimSpace(*p.DedupKey) == "" {
		return fmt.Errorf("%w: dedup key cannot be blank", ErrInvalidLead)
	}
	return nil
}

// CreateClientParams provision a tenant.
type CreateClientParams struct {
	Slug        string
	Name        string
	OwnerUserID *uuid.UUID
}

// ActivityKind labels timeline entries.
type ActivityKind string

const (
	ActivityIngested        ActivityKind = "ingested"
	ActivityFollowupSent    ActivityKind = "followup_sent"
	ActivityFollowupAnomaly ActivityKind = "followup_anomaly"
	ActivityRecovered       ActivityKind = "recovered"
)

// Activity is one lead timeline entry.
type Activity struct {
	ID        uuid.UUID
	LeadID    uuid.UUID
	ClientID  uuid.UUID
	Kind      ActivityKind
	Detail    string
	CreatedAt time.Time
}

// Store is the durable per-tenant lead collection. All state transitions go
// through CreateLead (create-with-dedup) and RecordFollowupSent (compare-and-set).
type Store interface {
	CreateClient(ctx context.Context, params CreateClientParams) (Client, error)
	GetClient(ctx context.Context, id uuid.UUID) (Client, error)
	GetClientBySlug(ctx context.Context, slug string) (Client, error)
	ListClients(ctx context.Context) ([]Client, error)
	GetOwner(ctx context.Context, userID uuid.UUID) (Owner, error)

	CreateLead(ctx context.Context, params CreateLeadParams) (Lead, error)
	GetLead(ctx context.Context, id uuid.UUID) (Lead, error)
	FindByDedupKey(ctx context.Context, clientID uuid.UUID, dedupKey string) (Lead, error)
	ListLeads(ctx context.Context, clientID uuid.UUID, limit int) ([]Lead, error)
	ListDueCandidates(ctx context.Context, clientID uuid.UUID, asOf time.Time) ([]Lead, error)
	RecordFollowupSent(ctx context.Context, leadID uuid.UUID, expected int, at time.Time) (bool, error)
	MarkRecovered(ctx context.Context, clientID, leadID uuid.UUID) error

	MarkMessageProcessed(ctx context.Context, channel Channel, externalID string) (bool, error)
	IsMessageProcessed(ctx context.Context, channel Channel, externalID string) (bool, error)

	AppendActivity(ctx context.Context, entry Activity) error
	ListActivity(ctx context.Context, clientID, leadID uuid.UUID) ([]Activity, error)
}

// StringPtr returns nil for blank strings and a pointer to the trimmed value otherwise.
func StringPtr(s string) *string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
