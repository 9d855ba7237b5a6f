package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"leadfollowup_backend/internal/leads"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedClient(t *testing.T, store *MemoryStore, slug string) leads.Client {
	t.Helper()
	client, err := store.CreateClient(context.Background(), leads.CreateClientParams{Slug: slug, Name: slug})
	require.NoError(t, err)
	return client
}

func TestMemoryStoreDedupIsPerClient(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	acme := seedClient(t, store, "acme")
	beta := seedClient(t, store, "beta")
	key := "jane@example.com"

	_, err := store.CreateLead(ctx, leads.CreateLeadParams{ClientID: acme.ID, Name: "Jane", Source: leads.SourceEmail, Email: &key, DedupKey: &key})
	require.NoError(t, err)

	_, err = store.CreateLead(ctx, leads.CreateLeadParams{ClientID: acme.ID, Name: "Jane again", Source: leads.SourceEmail, Email: &key, DedupKey: &key})
	require.ErrorIs(t, err, leads.ErrDuplicateKey)

	_, err = store.CreateLead(ctx, leads.CreateLeadParams{ClientID: beta.ID, Name: "Jane", Source: leads.SourceEmail, Email: &key, DedupKey: &key})
	require.NoError(t, err, "the same key under a different client is a distinct lead")

	found, err := store.FindByDedupKey(ctx, acme.ID, key)
	require.NoError(t, err)
	assert.Equal(t, "Jane", found.Name)
}

func TestMemoryStoreLeadsWithoutDedupKeyNeverCollide(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	client := seedClient(t, store, "acme")

	for i := 0; i < 3; i++ {
		_, err := store.CreateLead(ctx, leads.CreateLeadParams{ClientID: client.ID, Name: "SMS Lead", Source: leads.SourceSMS})
		require.NoError(t, err)
	}
	items, err := store.ListLeads(ctx, client.ID, 0)
	require.NoError(t, err)
	assert.Len(t, items, 3)
}

func TestMemoryStoreRecordFollowupSentOnlyOneWinner(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	client := seedClient(t, store, "acme")
	lead, err := store.CreateLead(ctx, leads.CreateLeadParams{ClientID: client.ID, Name: "Jane", Source: leads.SourceManual})
	require.NoError(t, err)

	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			won, err := store.RecordFollowupSent(ctx, lead.ID, 0, time.Now())
			if err == nil && won {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	got, err := store.GetLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.FollowupsSent)
	require.NotNil(t, got.LastFollowupAt)
}

func TestMemoryStoreRecordFollowupSentRefusesRecoveredAndCapped(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	client := seedClient(t, store, "acme")
	lead, err := store.CreateLead(ctx, leads.CreateLeadParams{ClientID: client.ID, Name: "Jane", Source: leads.SourceManual})
	require.NoError(t, err)

	for i := 0; i < leads.MaxFollowups; i++ {
		won, err := store.RecordFollowupSent(ctx, lead.ID, i, time.Now())
		require.NoError(t, err)
		require.True(t, won)
	}
	won, err := store.RecordFollowupSent(ctx, lead.ID, leads.MaxFollowups, time.Now())
	require.NoError(t, err)
	assert.False(t, won, "no lead can exceed the follow-up cap")

	other, err := store.CreateLead(ctx, leads.CreateLeadParams{ClientID: client.ID, Name: "Joe", Source: leads.SourceManual})
	require.NoError(t, err)
	require.NoError(t, store.MarkRecovered(ctx, client.ID, other.ID))
	won, err = store.RecordFollowupSent(ctx, other.ID, 0, time.Now())
	require.NoError(t, err)
	assert.False(t, won)
}

func TestMemoryStoreMarkRecoveredIsTenantScoped(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	acme := seedClient(t, store, "acme")
	beta := seedClient(t, store, "beta")
	lead, err := store.CreateLead(ctx, leads.CreateLeadParams{ClientID: acme.ID, Name: "Jane", Source: leads.SourceManual})
	require.NoError(t, err)

	require.ErrorIs(t, store.MarkRecovered(ctx, beta.ID, lead.ID), leads.ErrNotFound)
}

func TestMemoryStoreDueCandidatesHonourAsOf(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	client := seedClient(t, store, "acme")
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	_, err := store.CreateLead(ctx, leads.CreateLeadParams{ClientID: client.ID, Name: "Old", Source: leads.SourceManual, CreatedAt: now.Add(-25 * time.Hour)})
	require.NoError(t, err)
	_, err = store.CreateLead(ctx, leads.CreateLeadParams{ClientID: client.ID, Name: "New", Source: leads.SourceManual, CreatedAt: now.Add(-time.Hour)})
	require.NoError(t, err)

	items, err := store.ListDueCandidates(ctx, client.ID, now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Old", items[0].Name)
}

func TestMemoryStoreProcessedMarkers(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	first, err := store.MarkMessageProcessed(ctx, leads.ChannelSMS, "SM123")
	require.NoError(t, err)
	second, err := store.MarkMessageProcessed(ctx, leads.ChannelSMS, "SM123")
	require.NoError(t, err)
	seen, err := store.IsMessageProcessed(ctx, leads.ChannelEmail, "SM123")
	require.NoError(t, err)

	assert.True(t, first)
	assert.False(t, second)
	assert.False(t, seen, "markers are namespaced per channel")
}
