package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"leadfollowup_backend/internal/leads"

	"github.com/google/uuid"
)

type dedupIndexKey struct {
	clientID uuid.UUID
	key      string
}

type messageMarker struct {
	channel    leads.Channel
	externalID string
}

// MemoryStore is an in-process lead store for local runs and tests. It holds
// the same invariants as the PostgreSQL repository under a single mutex.
type MemoryStore struct {
	mu        sync.Mutex
	now       func() time.Time
	clients   map[uuid.UUID]leads.Client
	slugs     map[string]uuid.UUID
	owners    map[uuid.UUID]leads.Owner
	leads     map[uuid.UUID]leads.Lead
	dedup     map[dedupIndexKey]uuid.UUID
	processed map[messageMarker]time.Time
	activity  map[uuid.UUID][]leads.Activity
}

var _ leads.Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:       time.Now,
		clients:   make(map[uuid.UUID]leads.Client),
		slugs:     make(map[string]uuid.UUID),
		owners:    make(map[uuid.UUID]leads.Owner),
		leads:     make(map[uuid.UUID]leads.Lead),
		dedup:     make(map[dedupIndexKey]uuid.UUID),
		processed: make(map[messageMarker]time.Time),
		activity:  make(map[uuid.UUID][]leads.Activity),
	}
}

// PutOwner registers a user record. Users are owned by the auth layer, so the
// memory store exposes this for seeding only.
func (m *MemoryStore) PutOwner(owner leads.Owner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.owners[owner.ID] = owner
}

func (m *MemoryStore) CreateClient(_ context.Context, params leads.CreateClientParams) (leads.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.slugs[params.Slug]; ok {
		return leads.Client{}, leads.ErrSlugTaken
	}
	client := leads.Client{
		ID:          uuid.New(),
		Slug:        params.Slug,
		Name:        params.Name,
		OwnerUserID: params.OwnerUserID,
		CreatedAt:   m.now(),
	}
	m.clients[client.ID] = client
	m.slugs[client.Slug] = client.ID
	return client, nil
}

func (m *MemoryStore) GetClient(_ context.Context, id uuid.UUID) (leads.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	client, ok := m.clients[id]
	if !ok {
		return leads.Client{}, leads.ErrNotFound
	}
	return client, nil
}

func (m *MemoryStore) GetClientBySlug(_ context.Context, slug string) (leads.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.slugs[slug]
	if !ok {
		return leads.Client{}, leads.ErrNotFound
	}
	return m.clients[id], nil
}

func (m *MemoryStore) ListClients(_ context.Context) ([]leads.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]leads.Client, 0, len(m.clients))
	for _, client := range m.clients {
		items = append(items, client)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].Slug < items[j].Slug
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

func (m *MemoryStore) GetOwner(_ context.Context, userID uuid.UUID) (leads.Owner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	owner, ok := m.owners[userID]
	if !ok {
		return leads.Owner{}, leads.ErrNotFound
	}
	return owner, nil
}

func (m *MemoryStore) CreateLead(_ context.Context, params leads.CreateLeadParams) (leads.Lead, error) {
	if err := params.Validate(); err != nil {
		return leads.Lead{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.clients[params.ClientID]; !ok {
		return leads.Lead{}, leads.ErrNotFound
	}
	if params.DedupKey != nil {
		key := dedupIndexKey{clientID: params.ClientID, key: *params.DedupKey}
		if _, exists := m.dedup[key]; exists {
			return leads.Lead{}, leads.ErrDuplicateKey
		}
	}

	createdAt := params.CreatedAt
	if createdAt.IsZero() {
		createdAt = m.now()
	}
	lead := leads.Lead{
		ID:          uuid.New(),
		ClientID:    params.ClientID,
		Name:        params.Name,
		Email:       params.Email,
		Phone:       params.Phone,
		Source:      params.Source,
		SourceLabel: params.SourceLabel,
		InquiryText: params.InquiryText,
		DedupKey:    params.DedupKey,
		CreatedAt:   createdAt,
	}
	m.leads[lead.ID] = lead
	if lead.DedupKey != nil {
		m.dedup[dedupIndexKey{clientID: lead.ClientID, key: *lead.DedupKey}] = lead.ID
	}
	return lead, nil
}

func (m *MemoryStore) GetLead(_ context.Context, id uuid.UUID) (leads.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lead, ok := m.leads[id]
	if !ok {
		return leads.Lead{}, leads.ErrNotFound
	}
	return lead, nil
}

func (m *MemoryStore) FindByDedupKey(_ context.Context, clientID uuid.UUID, dedupKey string) (leads.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.dedup[dedupIndexKey{clientID: clientID, key: dedupKey}]
	if !ok {
		return leads.Lead{}, leads.ErrNotFound
	}
	return m.leads[id], nil
}

func (m *MemoryStore) ListLeads(_ context.Context, clientID uuid.UUID, limit int) ([]leads.Lead, error) {
	m.mu.Lock()
	items := m.filterLocked(func(l leads.Lead) bool { return l.ClientID == clientID })
	m.mu.Unlock()

	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (m *MemoryStore) ListDueCandidates(_ context.Context, clientID uuid.UUID, asOf time.Time) ([]leads.Lead, error) {
	m.mu.Lock()
	items := m.filterLocked(func(l leads.Lead) bool {
		return l.ClientID == clientID && !l.Recovered && l.FollowupsSent < leads.MaxFollowups && !l.CreatedAt.After(asOf)
	})
	m.mu.Unlock()

	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.Before(items[j].CreatedAt) })
	return items, nil
}

func (m *MemoryStore) RecordFollowupSent(_ context.Context, leadID uuid.UUID, expected int, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lead, ok := m.leads[leadID]
	if !ok {
		return false, nil
	}
	if lead.Recovered || lead.FollowupsSent != expected || lead.FollowupsSent >= leads.MaxFollowups {
		return false, nil
	}
	lead.FollowupsSent++
	sentAt := at
	lead.LastFollowupAt = &sentAt
	m.leads[leadID] = lead
	return true, nil
}

func (m *MemoryStore) MarkRecovered(_ context.Context, clientID, leadID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	lead, ok := m.leads[leadID]
	if !ok || lead.ClientID != clientID {
		return leads.ErrNotFound
	}
	lead.Recovered = true
	m.leads[leadID] = lead
	return nil
}

func (m *MemoryStore) MarkMessageProcessed(_ context.Context, channel leads.Channel, externalID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := messageMarker{channel: channel, externalID: externalID}
	if _, ok := m.processed[key]; ok {
		return false, nil
	}
	m.processed[key] = m.now()
	return true, nil
}

func (m *MemoryStore) IsMessageProcessed(_ context.Context, channel leads.Channel, externalID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.processed[messageMarker{channel: channel, externalID: externalID}]
	return ok, nil
}

func (m *MemoryStore) AppendActivity(_ context.Context, entry leads.Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = m.now()
	}
	m.activity[entry.LeadID] = append(m.activity[entry.LeadID], entry)
	return nil
}

func (m *MemoryStore) ListActivity(_ context.Context, clientID, leadID uuid.UUID) ([]leads.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := make([]leads.Activity, 0)
	for _, entry := range m.activity[leadID] {
		if entry.ClientID == clientID {
			items = append(items, entry)
		}
	}
	return items, nil
}

func (m *MemoryStore) filterLocked(keep func(leads.Lead) bool) []leads.Lead {
	items := make([]leads.Lead, 0)
	for _, lead := range m.leads {
		if keep(lead) {
			items = append(items, lead)
		}
	}
	return items
}
