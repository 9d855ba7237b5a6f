package followup

import (
	"context"
	"errors"
	"time"

	"leadfollowup_backend/internal/email"
	"leadfollowup_backend/internal/events"
	"leadfollowup_backend/internal/leads"
	"leadfollowup_backend/internal/sms"
	"leadfollowup_backend/platform/logger"

	"github.com/google/uuid"
)

// Outcome is the result of one dispatch attempt.
type Outcome int

const (
	OutcomeSent Outcome = iota
	OutcomeIneligible
	OutcomeLostRace
	OutcomeTransportFailed
	OutcomeNoContact
	OutcomeStoreFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSent:
		return "sent"
	case OutcomeIneligible:
		return "ineligible"
	case OutcomeLostRace:
		return "lost_race"
	case OutcomeTransportFailed:
		return "transport_failed"
	case OutcomeNoContact:
		return "no_contact"
	case OutcomeStoreFailed:
		return "store_failed"
	default:
		return "unknown"
	}
}

// DispatchStore is the store surface the dispatcher needs.
type DispatchStore interface {
	GetLead(ctx context.Context, id uuid.UUID) (leads.Lead, error)
	GetClient(ctx context.Context, id uuid.UUID) (leads.Client, error)
	RecordFollowupSent(ctx context.Context, leadID uuid.UUID, expected int, at time.Time) (bool, error)
}

// Resolver resolves the sender identity for a client.
type Resolver interface {
	ResolveSender(ctx context.Context, client leads.Client) (Identity, error)
}

// Dispatcher sends one follow-up to one lead and records it with a
// compare-and-set on the follow-up count.
type Dispatcher struct {
	store            DispatchStore
	policy           Policy
	resolver         Resolver
	email            email.Sender
	sms              sms.Sender
	bus              events.Bus
	log              *logger.Logger
	transportTimeout time.Duration
	now              func() time.Time
}

// DispatcherDeps groups the dispatcher collaborators. Nil transports and bus
// default to no-op implementations.
type DispatcherDeps struct {
	Store            DispatchStore
	Policy           Policy
	Resolver         Resolver
	Email            email.Sender
	SMS              sms.Sender
	Bus              events.Bus
	Log              *logger.Logger
	TransportTimeout time.Duration
	Now              func() time.Time
}

func NewDispatcher(deps DispatcherDeps) *Dispatcher {
	d := &Dispatcher{
		store:            deps.Store,
		policy:           deps.Policy,
		resolver:         deps.Resolver,
		email:            deps.Email,
		sms:              deps.SMS,
		bus:              deps.Bus,
		log:              deps.Log,
		transportTimeout: deps.TransportTimeout,
		now:              deps.Now,
	}
	if d.email == nil {
		d.email = email.NoopSender{}
	}
	if d.sms == nil {
		d.sms = sms.NoopSender{}
	}
	if d.bus == nil {
		d.bus = events.NopBus{}
	}
	if d.log == nil {
		d.log = logger.Nop()
	}
	if d.now == nil {
		d.now = time.Now
	}
	return d
}

// ChannelFor returns the outbound channel for a lead: SMS leads are answered
// by SMS and everything else by email.
func ChannelFor(lead leads.Lead) leads.Channel {
	if lead.Source == leads.SourceSMS {
		return leads.ChannelSMS
	}
	return leads.ChannelEmail
}

// SendFollowup re-reads the lead, sends the next follow-up when it is still
// eligible and records the send. A failed transport call leaves the count
// untouched so the lead is retried on the next sweep.
func (d *Dispatcher) SendFollowup(ctx context.Context, leadID uuid.UUID) Outcome {
	log := d.log.WithContext(ctx).WithLead(leadID.String())

	lead, err := d.store.GetLead(ctx, leadID)
	if err != nil {
		log.Error("failed to reload lead", "error", err)
		return OutcomeStoreFailed
	}

	now := d.now()
	if !d.policy.IsEligible(lead, now) {
		log.Debug("lead no longer eligible", "followups_sent", lead.FollowupsSent, "recovered", lead.Recovered)
		return OutcomeIneligible
	}
	expected := lead.FollowupsSent

	channel := ChannelFor(lead)
	contact := lead.ContactFor(channel)
	if contact == "" {
		log.Warn("lead has no contact address for channel", "channel", channel)
		return OutcomeNoContact
	}

	client, err := d.store.GetClient(ctx, lead.ClientID)
	if err != nil {
		log.Error("failed to load client", "client_id", lead.ClientID, "error", err)
		return OutcomeStoreFailed
	}

	identity, err := d.resolver.ResolveSender(ctx, client)
	if err != nil {
		log.Error("failed to resolve sender", "client_id", client.ID, "error", err)
		return OutcomeTransportFailed
	}

	tmpl := SelectTemplate(channel, expected)
	rendered, err := tmpl.Render(lead.Name, identity.Name)
	if err != nil {
		log.Error("failed to render follow-up", "sequence", tmpl.Sequence, "error", err)
		return OutcomeTransportFailed
	}

	if err := d.deliver(ctx, channel, identity, contact, rendered); err != nil {
		log.Error("follow-up transport failed",
			"channel", channel,
			"sequence", tmpl.Sequence,
			"misconfigured_sender", isMisconfiguredSender(err),
			"error", err,
		)
		return OutcomeTransportFailed
	}

	won, err := d.store.RecordFollowupSent(ctx, lead.ID, expected, now)
	if err != nil {
		log.Error("follow-up delivered but not recorded", "channel", channel, "expected", expected, "error", err)
		return OutcomeStoreFailed
	}
	if !won {
		log.Warn("follow-up delivered but count already advanced; lead may have been contacted twice",
			"channel", channel,
			"expected", expected,
		)
		d.bus.Publish(ctx, events.FollowupAnomaly{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    lead.ID,
			ClientID:  lead.ClientID,
			Channel:   string(channel),
			Expected:  expected,
		})
		return OutcomeLostRace
	}

	log.Info("follow-up sent", "channel", channel, "sequence", tmpl.Sequence)
	d.bus.Publish(ctx, events.FollowupSent{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    lead.ID,
		ClientID:  lead.ClientID,
		Channel:   string(channel),
		Sequence:  tmpl.Sequence,
		Subject:   rendered.Subject,
	})
	return OutcomeSent
}

func (d *Dispatcher) deliver(ctx context.Context, channel leads.Channel, identity Identity, to string, rendered Rendered) error {
	if d.transportTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.transportTimeout)
		defer cancel()
	}

	if channel == leads.ChannelSMS {
		return d.sms.SendSMS(ctx, identity.PhoneNumber, to, rendered.Body)
	}
	return d.email.Send(ctx, email.Message{
		FromName:    identity.Name,
		FromAddress: identity.Address,
		ReplyTo:     identity.ReplyTo,
		To:          to,
		Subject:     rendered.Subject,
		HTML:        rendered.HTML,
		Text:        rendered.Text,
	})
}

func isMisconfiguredSender(err error) bool {
	return errors.Is(err, email.ErrMisconfiguredSender) || errors.Is(err, sms.ErrMisconfiguredSender)
}
