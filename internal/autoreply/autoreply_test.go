package autoreply

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"leadfollowup_backend/internal/email"
	"leadfollowup_backend/internal/events"
	"leadfollowup_backend/internal/followup"
	"leadfollowup_backend/internal/leads"
	"leadfollowup_backend/internal/leads/repository"
	"leadfollowup_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type outbox struct {
	mu   sync.Mutex
	sent []email.Message
	err  error
}

func (o *outbox) Send(_ context.Context, msg email.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.sent = append(o.sent, msg)
	return nil
}

const platformAddress = "hello@leaddesk.test"

type fixture struct {
	store  *repository.MemoryStore
	client leads.Client
	outbox *outbox
	bus    *events.InMemoryBus
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repository.NewMemoryStore()
	ownerID := uuid.New()
	store.PutOwner(leads.Owner{ID: ownerID, Email: "pat@acme.test", Name: "Pat"})
	client, err := store.CreateClient(context.Background(), leads.CreateClientParams{Slug: "acme", Name: "Acme Roofing", OwnerUserID: &ownerID})
	require.NoError(t, err)

	f := &fixture{store: store, client: client, outbox: &outbox{}, bus: events.NewInMemoryBus(logger.Nop())}
	resolver := followup.NewSenderResolver(store, followup.SenderDefaults{Name: "Lead Desk", Address: platformAddress})
	New(store, resolver, f.outbox, platformAddress, time.Second, logger.Nop()).RegisterHandlers(f.bus)
	return f
}

func (f *fixture) ingest(t *testing.T, params leads.CreateLeadParams) leads.Lead {
	t.Helper()
	params.ClientID = f.client.ID
	if params.Name == "" {
		params.Name = "Jane"
	}
	lead, err := f.store.CreateLead(context.Background(), params)
	require.NoError(t, err)

	err = f.bus.PublishSync(context.Background(), events.LeadIngested{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    lead.ID,
		ClientID:  lead.ClientID,
		Source:    string(lead.Source),
	})
	require.NoError(t, err)
	return lead
}

func TestAutoreplySendsFromPlatformWithOwnerReplyTo(t *testing.T) {
	f := newFixture(t)
	lead := f.ingest(t, leads.CreateLeadParams{Source: leads.SourceWebhookForm, Email: leads.StringPtr("jane@example.com")})

	require.Len(t, f.outbox.sent, 1)
	msg := f.outbox.sent[0]
	assert.Equal(t, platformAddress, msg.FromAddress)
	assert.Equal(t, "Acme Roofing", msg.FromName)
	assert.Equal(t, "pat@acme.test", msg.ReplyTo)
	assert.Equal(t, "jane@example.com", msg.To)
	assert.Equal(t, "We received your inquiry, Jane", msg.Subject)

	got, err := f.store.GetLead(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.FollowupsSent, "the acknowledgement is not a follow-up")
}

func TestAutoreplySkipsLeadsWithoutEmail(t *testing.T) {
	f := newFixture(t)
	f.ingest(t, leads.CreateLeadParams{Source: leads.SourceSMS, Phone: leads.StringPtr("+12015550123")})
	f.ingest(t, leads.CreateLeadParams{Source: leads.SourceEmail, Email: leads.StringPtr("unknown@email.invalid"), DedupKey: leads.StringPtr("uid-9")})

	assert.Empty(t, f.outbox.sent)
}

func TestAutoreplySwallowsTransportFailure(t *testing.T) {
	f := newFixture(t)
	f.outbox.err = errors.New("smtp: 421")

	f.ingest(t, leads.CreateLeadParams{Source: leads.SourceManual, Email: leads.StringPtr("jane@example.com")})
	assert.Empty(t, f.outbox.sent)
}

func TestAutoreplyWithoutOwnerHasNoReplyTo(t *testing.T) {
	store := repository.NewMemoryStore()
	client, err := store.CreateClient(context.Background(), leads.CreateClientParams{Slug: "solo", Name: "Solo Plumbing"})
	require.NoError(t, err)
	lead, err := store.CreateLead(context.Background(), leads.CreateLeadParams{
		ClientID: client.ID,
		Name:     "Jane",
		Email:    leads.StringPtr("jane@example.com"),
		Source:   leads.SourceWebhookForm,
	})
	require.NoError(t, err)

	box := &outbox{}
	resolver := followup.NewSenderResolver(store, followup.SenderDefaults{Address: platformAddress})
	err = New(store, resolver, box, platformAddress, 0, nil).Handle(context.Background(), events.LeadIngested{LeadID: lead.ID, ClientID: client.ID})
	require.NoError(t, err)

	require.Len(t, box.sent, 1)
	assert.Equal(t, platformAddress, box.sent[0].FromAddress)
	assert.Empty(t, box.sent[0].ReplyTo)
	assert.Equal(t, "Solo Plumbing", box.sent[0].FromName)
}

func TestAutoreplyIgnoresOtherEvents(t *testing.T) {
	box := &outbox{}
	r := New(repository.NewMemoryStore(), followup.NewSenderResolver(nil, followup.SenderDefaults{}), box, platformAddress, 0, nil)
	require.NoError(t, r.Handle(context.Background(), events.LeadRecovered{LeadID: uuid.New()}))
	assert.Empty(t, box.sent)
}
