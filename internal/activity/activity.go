// Package activity records lead timeline entries in response to domain events.
package activity

import (
	"context"
	"fmt"

	"leadfollowup_backend/internal/events"
	"leadfollowup_backend/internal/leads"
	"leadfollowup_backend/platform/logger"
)

// Writer persists timeline entries.
type Writer interface {
	AppendActivity(ctx context.Context, entry leads.Activity) error
}

// Recorder turns lead and follow-up events into activity rows.
type Recorder struct {
	writer Writer
	log    *logger.Logger
}

func New(writer Writer, log *logger.Logger) *Recorder {
	return &Recorder{writer: writer, log: log}
}

// RegisterHandlers subscribes the recorder to the events it records.
func (r *Recorder) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.LeadIngested{}.EventName(), r)
	bus.Subscribe(events.LeadRecovered{}.EventName(), r)
	bus.Subscribe(events.FollowupSent{}.EventName(), r)
	bus.Subscribe(events.FollowupAnomaly{}.EventName(), r)
}

// Handle routes events to timeline entries.
func (r *Recorder) Handle(ctx context.Context, event events.Event) error {
	var entry leads.Activity
	switch e := event.(type) {
	case events.LeadIngested:
		detail := "via " + e.Source
		if e.SourceLabel != "" {
			detail += " (" + e.SourceLabel + ")"
		}
		entry = leads.Activity{LeadID: e.LeadID, ClientID: e.ClientID, Kind: leads.ActivityIngested, Detail: detail}
	case events.LeadRecovered:
		entry = leads.Activity{LeadID: e.LeadID, ClientID: e.ClientID, Kind: leads.ActivityRecovered}
	case events.FollowupSent:
		detail := fmt.Sprintf("follow-up %d via %s", e.Sequence, e.Channel)
		if e.Subject != "" {
			detail += ": " + e.Subject
		}
		entry = leads.Activity{LeadID: e.LeadID, ClientID: e.ClientID, Kind: leads.ActivityFollowupSent, Detail: detail}
	case events.FollowupAnomaly:
		detail := fmt.Sprintf("message delivered via %s but count %d was already advanced", e.Channel, e.Expected)
		entry = leads.Activity{LeadID: e.LeadID, ClientID: e.ClientID, Kind: leads.ActivityFollowupAnomaly, Detail: detail}
	default:
		return nil
	}

	entry.CreatedAt = event.OccurredAt()
	if err := r.writer.AppendActivity(ctx, entry); err != nil {
		r.log.Error("failed to record lead activity", "lead_id", entry.LeadID, "kind", entry.Kind, "error", err)
		return err
	}
	return nil
}
