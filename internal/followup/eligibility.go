// Package followup decides when leads are due, renders follow-up messages
// and dispatches them through the configured transports.
package followup

import (
	"time"

	"leadfollowup_backend/internal/leads"
)

// FirstFollowupDelay is the minimum lead age before the first follow-up.
const FirstFollowupDelay = 24 * time.Hour

// Policy holds the eligibility rule.
type Policy struct {
	// MinSpacing, when positive, is the minimum time between two follow-ups
	// to the same lead. Zero keeps the age-only rule.
	MinSpacing time.Duration
}

// IsEligible reports whether lead may receive a follow-up at now.
func (p Policy) IsEligible(lead leads.Lead, now time.Time) bool {
	if lead.Recovered {
		return false
	}
	if lead.FollowupsSent >= leads.MaxFollowups {
		return false
	}
	if now.Sub(lead.CreatedAt) < FirstFollowupDelay {
		return false
	}
	if p.MinSpacing > 0 && lead.LastFollowupAt != nil && now.Sub(*lead.LastFollowupAt) < p.MinSpacing {
		return false
	}
	return true
}

// DueBefore returns the newest creation time a lead can have and still be due at now.
func (p Policy) DueBefore(now time.Time) time.Time {
	return now.Add(-FirstFollowupDelay)
}
