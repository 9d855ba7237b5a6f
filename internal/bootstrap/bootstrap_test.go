package bootstrap

import (
	"context"
	"errors"
	"testing"
	"time"

	"leadfollowup_backend/internal/ingest"
	"leadfollowup_backend/internal/leads"
	"leadfollowup_backend/internal/scheduler"
	"leadfollowup_backend/platform/config"
	"leadfollowup_backend/platform/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Env:              "test",
		StoreDriver:      config.StoreDriverMemory,
		EmailProvider:    config.EmailProviderNoop,
		EmailFromName:    "Follow-ups",
		EmailFromAddress: "team@example.com",
		SMSClientSlug:    "acme",
		SweepConcurrency: 2,
		TransportTimeout: time.Second,
		AutoreplyEnabled: true,
	}
}

func TestBuildMemoryEngineRunsEndToEnd(t *testing.T) {
	ctx := context.Background()
	engine, err := Build(ctx, memoryConfig(), logger.Nop())
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	assert.Nil(t, engine.Pool)
	require.NoError(t, engine.Health().Ping(ctx))

	client, err := engine.Store.CreateClient(ctx, leads.CreateClientParams{Slug: "acme", Name: "Acme"})
	require.NoError(t, err)

	email := "jane@example.com"
	_, err = engine.Store.CreateLead(ctx, leads.CreateLeadParams{
		ClientID:  client.ID,
		Name:      "Jane",
		Email:     &email,
		Source:    leads.SourceManual,
		CreatedAt: time.Now().Add(-25 * time.Hour),
	})
	require.NoError(t, err)

	res, err := engine.Ingest.IngestSMS(ctx, ingest.InboundSMS{MessageSID: "SM1", From: "+12015550123", To: "+12015550100", Body: "hi"})
	require.NoError(t, err)
	assert.False(t, res.Deduplicated)

	report, err := engine.Runner.RunSweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Clients)
	assert.Equal(t, 1, report.Sent, "only the aged lead is due")

	engine.Bus.Wait()
	items, err := engine.Store.ListLeads(ctx, client.ID, 0)
	require.NoError(t, err)
	require.Len(t, items, 2)
}

func TestBuildWithoutMailboxDisablesPolling(t *testing.T) {
	engine, err := Build(context.Background(), memoryConfig(), logger.Nop())
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	assert.False(t, engine.Runner.PollingEnabled())
	_, err = engine.Runner.RunMailboxPoll(context.Background())
	assert.ErrorIs(t, err, scheduler.ErrMailboxDisabled)
}

func TestBuildRejectsUnreadableRoutingFile(t *testing.T) {
	cfg := memoryConfig()
	cfg.RoutingFile = t.TempDir() + "/missing.yaml"

	_, err := Build(context.Background(), cfg, logger.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "routing table")
}

func TestWithRetryStopsAfterSuccess(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), logger.Nop(), "op", 3, time.Millisecond, func() error {
		calls++
		if calls < 2 {
			return errors.New("not yet")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestWithRetryWrapsLastError(t *testing.T) {
	boom := errors.New("boom")
	err := WithRetry(context.Background(), logger.Nop(), "op", 2, time.Millisecond, func() error { return boom })
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "op: ")
}
