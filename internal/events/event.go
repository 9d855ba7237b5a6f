// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"leadfollowup_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Lead Domain Events
// =============================================================================

// LeadIngested is published after an ingestion adapter created a new lead.
type LeadIngested struct {
	BaseEvent
	LeadID      uuid.UUID `json:"leadId"`
	ClientID    uuid.UUID `json:"clientId"`
	Source      string    `json:"source"`
	SourceLabel string    `json:"sourceLabel,omitempty"`
}

func (e LeadIngested) EventName() string { return "leads.lead.ingested" }

// LeadRecovered is published when the owner marks a lead as recovered.
type LeadRecovered struct {
	BaseEvent
	LeadID   uuid.UUID `json:"leadId"`
	ClientID uuid.UUID `json:"clientId"`
}

func (e LeadRecovered) EventName() string { return "leads.lead.recovered" }

// =============================================================================
// Follow-up Domain Events
// =============================================================================

// FollowupSent is published after a follow-up was delivered and recorded.
type FollowupSent struct {
	BaseEvent
	LeadID   uuid.UUID `json:"leadId"`
	ClientID uuid.UUID `json:"clientId"`
	Channel  string    `json:"channel"`
	Sequence int       `json:"sequence"`
	Subject  string    `json:"subject,omitempty"`
}

func (e FollowupSent) EventName() string { return "followup.sent" }

// FollowupAnomaly is published when a message was delivered but the
// compare-and-set lost the race, meaning the lead may have been contacted twice.
type FollowupAnomaly struct {
	BaseEvent
	LeadID   uuid.UUID `json:"leadId"`
	ClientID uuid.UUID `json:"clientId"`
	Channel  string    `json:"channel"`
	Expected int       `json:"expected"`
}

func (e FollowupAnomaly) EventName() string { return "followup.anomaly" }
