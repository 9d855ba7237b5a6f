// Package autoreply acknowledges new leads by email as soon as they are ingested.
package autoreply

import (
	"context"
	"strings"
	"time"

	"leadfollowup_backend/internal/email"
	"leadfollowup_backend/internal/events"
	"leadfollowup_backend/internal/followup"
	"leadfollowup_backend/internal/leads"
	"leadfollowup_backend/platform/logger"

	"github.com/google/uuid"
)

// Store loads the lead and client an event refers to.
type Store interface {
	GetLead(ctx context.Context, id uuid.UUID) (leads.Lead, error)
	GetClient(ctx context.Context, id uuid.UUID) (leads.Client, error)
}

// Responder sends the acknowledgement from the platform address with the
// client's owner as Reply-To. It never touches the follow-up count.
type Responder struct {
	store    Store
	resolver followup.Resolver
	email    email.Sender
	from     string
	timeout  time.Duration
	log      *logger.Logger
}

func New(store Store, resolver followup.Resolver, sender email.Sender, fromAddress string, timeout time.Duration, log *logger.Logger) *Responder {
	if log == nil {
		log = logger.Nop()
	}
	return &Responder{
		store:    store,
		resolver: resolver,
		email:    sender,
		from:     strings.TrimSpace(fromAddress),
		timeout:  timeout,
		log:      log,
	}
}

// RegisterHandlers subscribes the responder to new leads.
func (r *Responder) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.LeadIngested{}.EventName(), r)
}

// Handle sends one acknowledgement. Failures are logged and swallowed so a
// broken transport never blocks ingestion.
func (r *Responder) Handle(ctx context.Context, event events.Event) error {
	e, ok := event.(events.LeadIngested)
	if !ok {
		return nil
	}
	log := r.log.WithContext(ctx).WithLead(e.LeadID.String())

	lead, err := r.store.GetLead(ctx, e.LeadID)
	if err != nil {
		log.Warn("autoreply skipped: lead not loaded", "error", err)
		return nil
	}
	to := strings.TrimSpace(deref(lead.Email))
	if !deliverable(to) {
		return nil
	}

	client, err := r.store.GetClient(ctx, lead.ClientID)
	if err != nil {
		log.Warn("autoreply skipped: client not loaded", "error", err)
		return nil
	}
	identity, err := r.resolver.ResolveSender(ctx, client)
	if err != nil {
		log.Warn("autoreply skipped: sender not resolved", "error", err)
		return nil
	}

	msg, err := r.compose(lead, client, identity, to)
	if err != nil {
		log.Error("failed to render autoreply", "error", err)
		return nil
	}

	sendCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	if err := r.email.Send(sendCtx, msg); err != nil {
		log.Warn("failed to send autoreply", "error", err)
		return nil
	}
	log.Info("autoreply sent", "client", client.Slug)
	return nil
}

func (r *Responder) compose(lead leads.Lead, client leads.Client, identity followup.Identity, to string) (email.Message, error) {
	rendered, err := followup.AutoreplyTemplate().Render(lead.Name, identity.Name)
	if err != nil {
		return email.Message{}, err
	}

	from := r.from
	if from == "" {
		from = identity.Address
	}
	replyTo := identity.ReplyTo
	if replyTo == "" && !strings.EqualFold(identity.Address, from) {
		replyTo = identity.Address
	}

	return email.Message{
		FromName:    firstNonEmpty(client.Name, identity.Name),
		FromAddress: from,
		ReplyTo:     replyTo,
		To:          to,
		Subject:     rendered.Subject,
		HTML:        rendered.HTML,
		Text:        rendered.Text,
	}, nil
}

// deliverable rejects empty and placeholder addresses such as the one used
// for mail whose sender could not be parsed.
func deliverable(address string) bool {
	if address == "" || !strings.Contains(address, "@") {
		return false
	}
	return !strings.HasSuffix(strings.ToLower(address), ".invalid")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
