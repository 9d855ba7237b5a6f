package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"leadfollowup_backend/internal/leads"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type routingConfig struct {
	mailbox, sms, file string
}

func (c routingConfig) GetMailboxClientSlug() string { return c.mailbox }
func (c routingConfig) GetSMSClientSlug() string     { return c.sms }
func (c routingConfig) GetRoutingFile() string       { return c.file }

func TestRoutingTableExactBeforeWildcard(t *testing.T) {
	table := NewRoutingTable()
	table.Add(leads.ChannelSMS, Wildcard, "demo")
	table.Add(leads.ChannelSMS, "(201) 555-0123", "acme")
	table.Add(leads.ChannelEmail, "Leads@Acme.test", "acme")

	slug, ok := table.Resolve(leads.ChannelSMS, "+12015550123")
	require.True(t, ok)
	assert.Equal(t, "acme", slug)

	slug, ok = table.Resolve(leads.ChannelSMS, "+12015550199")
	require.True(t, ok)
	assert.Equal(t, "demo", slug)

	slug, ok = table.Resolve(leads.ChannelEmail, "leads@acme.test")
	require.True(t, ok)
	assert.Equal(t, "acme", slug)

	_, ok = table.Resolve(leads.ChannelEmail, "other@acme.test")
	assert.False(t, ok, "email has no wildcard in this table")
}

func TestRoutingTableFromConfigLoadsYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routes.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
routes:
  - channel: email
    identity: leads@beta.test
    client: beta
  - channel: sms
    identity: "+12015550123"
    client: beta
`), 0o600))

	table, err := NewRoutingTableFromConfig(routingConfig{mailbox: "demo", sms: "demo", file: path})
	require.NoError(t, err)

	slug, _ := table.Resolve(leads.ChannelEmail, "leads@beta.test")
	assert.Equal(t, "beta", slug)
	slug, _ = table.Resolve(leads.ChannelEmail, "someone@else.test")
	assert.Equal(t, "demo", slug)
	slug, _ = table.Resolve(leads.ChannelSMS, "+12015550123")
	assert.Equal(t, "beta", slug)
}

func TestRoutingTableRejectsUnknownChannel(t *testing.T) {
	err := NewRoutingTable().LoadYAML([]byte("routes:\n  - channel: fax\n    identity: x\n    client: y\n"))
	require.Error(t, err)
}
