package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"leadfollowup_backend/internal/leads"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolationCode = "23505"

// DB is the subset of pgxpool.Pool used by the repository.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository is the PostgreSQL lead store.
type Repository struct {
	pool DB
	now  func() time.Time
}

// Compile-time check.
var _ leads.Store = (*Repository)(nil)

func New(pool DB) *Repository {
	return &Repository{pool: pool, now: time.Now}
}

const clientColumns = `id, slug, name, owner_user_id, created_at`

const leadColumns = `id, client_id, name, email, phone, source, source_label, inquiry_text,
		dedup_key, created_at, followups_sent, recovered, last_followup_at`

func (r *Repository) CreateClient(ctx context.Context, params leads.CreateClientParams) (leads.Client, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO clients (slug, name, owner_user_id)
		VALUES ($1, $2, $3)
		RETURNING `+clientColumns,
		params.Slug, params.Name, params.OwnerUserID,
	)
	client, err := scanClient(row)
	if isUniqueViolation(err) {
		return leads.Client{}, leads.ErrSlugTaken
	}
	return client, err
}

func (r *Repository) GetClient(ctx context.Context, id uuid.UUID) (leads.Client, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, id)
	return scanClient(row)
}

func (r *Repository) GetClientBySlug(ctx context.Context, slug string) (leads.Client, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE slug = $1`, slug)
	return scanClient(row)
}

func (r *Repository) ListClients(ctx context.Context) ([]leads.Client, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+clientColumns+` FROM clients ORDER BY created_at ASC, slug ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]leads.Client, 0)
	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, client)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return items, nil
}

func (r *Repository) GetOwner(ctx context.Context, userID uuid.UUID) (leads.Owner, error) {
	var owner leads.Owner
	err := r.pool.QueryRow(ctx, `SELECT id, email, name FROM users WHERE id = $1`, userID).
		Scan(&owner.ID, &owner.Email, &owner.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return leads.Owner{}, leads.ErrNotFound
	}
	return owner, err
}

// CreateLead inserts the lead. A duplicate (client_id, dedup_key) pair is
// rejected by the partial unique index and surfaces as ErrDuplicateKey.
func (r *Repository) CreateLead(ctx context.Context, params leads.CreateLeadParams) (leads.Lead, error) {
	if err := params.Validate(); err != nil {
		return leads.Lead{}, err
	}
	createdAt := params.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.now()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO leads (client_id, name, email, phone, source, source_label, inquiry_text, dedup_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+leadColumns,
		params.ClientID, params.Name, params.Email, params.Phone, string(params.Source),
		params.SourceLabel, params.InquiryText, params.DedupKey, createdAt,
	)
	lead, err := scanLead(row)
	if isUniqueViolation(err) {
		return leads.Lead{}, leads.ErrDuplicateKey
	}
	if err != nil {
		return leads.Lead{}, fmt.Errorf("insert lead: %w", err)
	}
	return lead, nil
}

func (r *Repository) GetLead(ctx context.Context, id uuid.UUID) (leads.Lead, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	return scanLead(row)
}

func (r *Repository) FindByDedupKey(ctx context.Context, clientID uuid.UUID, dedupKey string) (leads.Lead, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE client_id = $1 AND dedup_key = $2`, clientID, dedupKey)
	return scanLead(row)
}

func (r *Repository) ListLeads(ctx context.Context, clientID uuid.UUID, limit int) ([]leads.Lead, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE client_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, clientID, limit)
	if err != nil {
		return nil, err
	}
	return collectLeads(rows)
}

// ListDueCandidates returns leads that may be eligible at asOf. The caller
// still applies the eligibility rule; this query only narrows the scan.
func (r *Repository) ListDueCandidates(ctx context.Context, clientID uuid.UUID, asOf time.Time) ([]leads.Lead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE client_id = $1
			AND recovered = false
			AND followups_sent < $2
			AND created_at <= $3
		ORDER BY created_at ASC`, clientID, leads.MaxFollowups, asOf)
	if err != nil {
		return nil, err
	}
	return collectLeads(rows)
}

// RecordFollowupSent atomically increments followups_sent when it still equals
// expected and the lead is not recovered. It reports whether the row changed.
func (r *Repository) RecordFollowupSent(ctx context.Context, leadID uuid.UUID, expected int, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads
		SET followups_sent = followups_sent + 1, last_followup_at = $3
		WHERE id = $1 AND followups_sent = $2 AND recovered = false AND followups_sent < $4`,
		leadID, expected, at, leads.MaxFollowups,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *Repository) MarkRecovered(ctx context.Context, clientID, leadID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads SET recovered = true
		WHERE id = $1 AND client_id = $2`, leadID, clientID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return leads.ErrNotFound
	}
	return nil
}

// MarkMessageProcessed records an inbound message marker. It reports false
// when the marker already existed.
func (r *Repository) MarkMessageProcessed(ctx context.Context, channel leads.Channel, externalID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO processed_messages (channel, external_id)
		VALUES ($1, $2)
		ON CONFLICT (channel, external_id) DO NOTHING`, string(channel), externalID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *Repository) IsMessageProcessed(ctx context.Context, channel leads.Channel, externalID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM processed_messages WHERE channel = $1 AND external_id = $2)`,
		string(channel), externalID).Scan(&exists)
	return exists, err
}

func (r *Repository) AppendActivity(ctx context.Context, entry leads.Activity) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.now()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO lead_activity (id, lead_id, client_id, kind, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID, entry.LeadID, entry.ClientID, string(entry.Kind), entry.Detail, entry.CreatedAt)
	return err
}

func (r *Repository) ListActivity(ctx context.Context, clientID, leadID uuid.UUID) ([]leads.Activity, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, lead_id, client_id, kind, detail, created_at
		FROM lead_activity
		WHERE client_id = $1 AND lead_id = $2
		ORDER BY created_at ASC`, clientID, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]leads.Activity, 0)
	for rows.Next() {
		var (
			entry leads.Activity
			kind  string
		)
		if err := rows.Scan(&entry.ID, &entry.LeadID, &entry.ClientID, &kind, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.Kind = leads.ActivityKind(kind)
		items = append(items, entry)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return items, nil
}

func scanClient(row pgx.Row) (leads.Client, error) {
	var client leads.Client
	err := row.Scan(&client.ID, &client.Slug, &client.Name, &client.OwnerUserID, &client.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return leads.Client{}, leads.ErrNotFound
	}
	return client, err
}

func scanLead(row pgx.Row) (leads.Lead, error) {
	var (
		lead   leads.Lead
		source string
	)
	err := row.Scan(
		&lead.ID, &lead.ClientID, &lead.Name, &lead.Email, &lead.Phone, &source,
		&lead.SourceLabel, &lead.InquiryText, &lead.DedupKey, &lead.CreatedAt,
		&lead.FollowupsSent, &lead.Recovered, &lead.LastFollowupAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return leads.Lead{}, leads.ErrNotFound
	}
	if err != nil {
		return leads.Lead{}, err
	}
	lead.Source = leads.Source(source)
	return lead, nil
}

func collectLeads(rows pgx.Rows) ([]leads.Lead, error) {
	defer rows.Close()

	items := make([]leads.Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, lead)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return items, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolationCode
	}
	return err != nil && strings.Contains(err.Error(), "SQLSTATE "+uniqueViolationCode)
}
