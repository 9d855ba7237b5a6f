package followup

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"leadfollowup_backend/internal/email"
	"leadfollowup_backend/internal/events"
	"leadfollowup_backend/internal/leads"
	"leadfollowup_backend/internal/leads/repository"
	"leadfollowup_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmail struct {
	mu   sync.Mutex
	sent []email.Message
	err  error
}

func (f *fakeEmail) Send(_ context.Context, msg email.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type sentSMS struct{ from, to, body string }

type fakeSMS struct {
	mu   sync.Mutex
	sent []sentSMS
}

func (f *fakeSMS) SendSMS(_ context.Context, from, to, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentSMS{from: from, to: to, body: body})
	return nil
}

// racingStore loses every compare-and-set, as if another worker won first.
type racingStore struct {
	*repository.MemoryStore
}

func (racingStore) RecordFollowupSent(context.Context, uuid.UUID, int, time.Time) (bool, error) {
	return false, nil
}

type dispatchFixture struct {
	store  *repository.MemoryStore
	client leads.Client
	email  *fakeEmail
	sms    *fakeSMS
	bus    *events.InMemoryBus
	now    time.Time
}

func newDispatchFixture(t *testing.T) *dispatchFixture {
	t.Helper()
	store := repository.NewMemoryStore()
	client, err := store.CreateClient(context.Background(), leads.CreateClientParams{Slug: "acme", Name: "Acme Roofing"})
	require.NoError(t, err)
	return &dispatchFixture{
		store:  store,
		client: client,
		email:  &fakeEmail{},
		sms:    &fakeSMS{},
		bus:    events.NewInMemoryBus(logger.Nop()),
		now:    time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (f *dispatchFixture) dispatcher(store DispatchStore) *Dispatcher {
	return NewDispatcher(DispatcherDeps{
		Store:    store,
		Resolver: NewSenderResolver(f.store, platformDefaults),
		Email:    f.email,
		SMS:      f.sms,
		Bus:      f.bus,
		Log:      logger.Nop(),
		Now:      func() time.Time { return f.now },
	})
}

func (f *dispatchFixture) lead(t *testing.T, params leads.CreateLeadParams) leads.Lead {
	t.Helper()
	params.ClientID = f.client.ID
	if params.Name == "" {
		params.Name = "Jane"
	}
	if params.CreatedAt.IsZero() {
		params.CreatedAt = f.now.Add(-25 * time.Hour)
	}
	lead, err := f.store.CreateLead(context.Background(), params)
	require.NoError(t, err)
	return lead
}

func TestSendFollowupEmailAdvancesCount(t *testing.T) {
	f := newDispatchFixture(t)
	lead := f.lead(t, leads.CreateLeadParams{Source: leads.SourceWebhookForm, Email: leads.StringPtr("jane@example.com")})

	var published []events.Event
	var mu sync.Mutex
	f.bus.Subscribe(events.FollowupSent{}.EventName(), events.HandlerFunc(func(_ context.Context, e events.Event) error {
		mu.Lock()
		published = append(published, e)
		mu.Unlock()
		return nil
	}))

	outcome := f.dispatcher(f.store).SendFollowup(context.Background(), lead.ID)
	f.bus.Wait()

	assert.Equal(t, OutcomeSent, outcome)
	require.Len(t, f.email.sent, 1)
	msg := f.email.sent[0]
	assert.Equal(t, "jane@example.com", msg.To)
	assert.Equal(t, "followups@platform.test", msg.FromAddress)
	assert.Equal(t, "Acme Roofing", msg.FromName)
	assert.Equal(t, "Quick follow-up on your inquiry, Jane!", msg.Subject)

	got, err := f.store.GetLead(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.FollowupsSent)
	require.NotNil(t, got.LastFollowupAt)
	assert.True(t, got.LastFollowupAt.Equal(f.now))
	assert.Len(t, published, 1)
}

func TestSendFollowupSMSLeadUsesSMS(t *testing.T) {
	f := newDispatchFixture(t)
	lead := f.lead(t, leads.CreateLeadParams{Name: "SMS Lead", Source: leads.SourceSMS, Phone: leads.StringPtr("+12015550123")})

	outcome := f.dispatcher(f.store).SendFollowup(context.Background(), lead.ID)

	assert.Equal(t, OutcomeSent, outcome)
	assert.Empty(t, f.email.sent)
	require.Len(t, f.sms.sent, 1)
	assert.Equal(t, "+12015550123", f.sms.sent[0].to)
	assert.Equal(t, "+12015550100", f.sms.sent[0].from)
}

func TestSendFollowupIneligibleLeadIsUntouched(t *testing.T) {
	f := newDispatchFixture(t)
	lead := f.lead(t, leads.CreateLeadParams{Source: leads.SourceEmail, Email: leads.StringPtr("jane@example.com"), CreatedAt: f.now.Add(-time.Hour)})

	outcome := f.dispatcher(f.store).SendFollowup(context.Background(), lead.ID)

	assert.Equal(t, OutcomeIneligible, outcome)
	assert.Empty(t, f.email.sent)
}

func TestSendFollowupTransportFailureKeepsCount(t *testing.T) {
	f := newDispatchFixture(t)
	f.email.err = errors.New("connection reset")
	lead := f.lead(t, leads.CreateLeadParams{Source: leads.SourceEmail, Email: leads.StringPtr("jane@example.com")})

	outcome := f.dispatcher(f.store).SendFollowup(context.Background(), lead.ID)

	assert.Equal(t, OutcomeTransportFailed, outcome)
	got, err := f.store.GetLead(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.FollowupsSent)
	assert.Nil(t, got.LastFollowupAt)
}

func TestSendFollowupMissingContactIsSkipped(t *testing.T) {
	f := newDispatchFixture(t)
	lead := f.lead(t, leads.CreateLeadParams{Source: leads.SourceManual})

	outcome := f.dispatcher(f.store).SendFollowup(context.Background(), lead.ID)
	assert.Equal(t, OutcomeNoContact, outcome)
}

func TestSendFollowupLostRacePublishesAnomaly(t *testing.T) {
	f := newDispatchFixture(t)
	lead := f.lead(t, leads.CreateLeadParams{Source: leads.SourceEmail, Email: leads.StringPtr("jane@example.com")})

	anomalies := make(chan events.FollowupAnomaly, 1)
	f.bus.Subscribe(events.FollowupAnomaly{}.EventName(), events.HandlerFunc(func(_ context.Context, e events.Event) error {
		anomalies <- e.(events.FollowupAnomaly)
		return nil
	}))

	outcome := f.dispatcher(racingStore{f.store}).SendFollowup(context.Background(), lead.ID)
	f.bus.Wait()

	assert.Equal(t, OutcomeLostRace, outcome)
	select {
	case got := <-anomalies:
		assert.Equal(t, lead.ID, got.LeadID)
		assert.Equal(t, 0, got.Expected)
	default:
		t.Fatal("expected an anomaly event")
	}
}

func TestSendFollowupUnknownLeadIsStoreFailure(t *testing.T) {
	f := newDispatchFixture(t)
	assert.Equal(t, OutcomeStoreFailed, f.dispatcher(f.store).SendFollowup(context.Background(), uuid.New()))
}
