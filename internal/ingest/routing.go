package ingest

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"leadfollowup_backend/internal/leads"
	"leadfollowup_backend/platform/config"
	"leadfollowup_backend/platform/phone"

	"gopkg.in/yaml.v3"
)

// Wildcard matches any inbound identity on a channel.
const Wildcard = "*"

type routeKey struct {
	channel  leads.Channel
	identity string
}

// RoutingTable maps an inbound identity (a mailbox address or an SMS number)
// to the slug of the client that owns it.
type RoutingTable struct {
	mu     sync.RWMutex
	routes map[routeKey]string
}

type routingFile struct {
	Routes []struct {
		Channel  string `yaml:"channel"`
		Identity string `yaml:"identity"`
		Client   string `yaml:"client"`
	} `yaml:"routes"`
}

func NewRoutingTable() *RoutingTable {
	return &RoutingTable{routes: make(map[routeKey]string)}
}

// NewRoutingTableFromConfig builds the default per-channel wildcard entries
// and overlays the optional YAML routing file.
func NewRoutingTableFromConfig(cfg config.RoutingConfig) (*RoutingTable, error) {
	table := NewRoutingTable()
	if slug := strings.TrimSpace(cfg.GetMailboxClientSlug()); slug != "" {
		table.Add(leads.ChannelEmail, Wildcard, slug)
	}
	if slug := strings.TrimSpace(cfg.GetSMSClientSlug()); slug != "" {
		table.Add(leads.ChannelSMS, Wildcard, slug)
	}

	if path := strings.TrimSpace(cfg.GetRoutingFile()); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read routing file: %w", err)
		}
		if err := table.LoadYAML(data); err != nil {
			return nil, err
		}
	}
	return table, nil
}

// LoadYAML adds the routes of a routing document to the table.
func (t *RoutingTable) LoadYAML(data []byte) error {
	var doc routingFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse routing file: %w", err)
	}
	for i, route := range doc.Routes {
		channel := leads.Channel(strings.ToLower(strings.TrimSpace(route.Channel)))
		if channel != leads.ChannelEmail && channel != leads.ChannelSMS {
			return fmt.Errorf("routing entry %d: unknown channel %q", i, route.Channel)
		}
		if strings.TrimSpace(route.Identity) == "" || strings.TrimSpace(route.Client) == "" {
			return fmt.Errorf("routing entry %d: identity and client are required", i)
		}
		t.Add(channel, route.Identity, strings.TrimSpace(route.Client))
	}
	return nil
}

// Add registers or replaces a route.
func (t *RoutingTable) Add(channel leads.Channel, identity, slug string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.routes[routeKey{channel: channel, identity: normalizeIdentity(channel, identity)}] = slug
}

// Resolve returns the client slug for an identity, falling back to the
// channel wildcard.
func (t *RoutingTable) Resolve(channel leads.Channel, identity string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if slug, ok := t.routes[routeKey{channel: channel, identity: normalizeIdentity(channel, identity)}]; ok {
		return slug, true
	}
	slug, ok := t.routes[routeKey{channel: channel, identity: Wildcard}]
	return slug, ok
}

func normalizeIdentity(channel leads.Channel, identity string) string {
	identity = strings.TrimSpace(identity)
	if identity == Wildcard {
		return identity
	}
	if channel == leads.ChannelSMS {
		return phone.NormalizeE164(identity)
	}
	return strings.ToLower(identity)
}
