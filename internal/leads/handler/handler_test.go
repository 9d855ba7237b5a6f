package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"leadfollowup_backend/internal/activity"
	"leadfollowup_backend/internal/events"
	apphttp "leadfollowup_backend/internal/http"
	"leadfollowup_backend/internal/leads"
	"leadfollowup_backend/internal/leads/repository"
	"leadfollowup_backend/internal/leads/transport"
	"leadfollowup_backend/platform/httpkit"
	"leadfollowup_backend/platform/logger"
	"leadfollowup_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-access-secret"

type jwtConfig struct{}

func (jwtConfig) GetJWTAccessSecret() string { return testSecret }

func accessToken(t *testing.T, clientID uuid.UUID) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":       uuid.NewString(),
		"tenant_id": clientID.String(),
		"type":      "access",
		"exp":       time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

type fixture struct {
	engine *gin.Engine
	store  *repository.MemoryStore
	bus    *events.InMemoryBus
	acme   leads.Client
	beta   leads.Client
	lead   leads.Lead
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	store := repository.NewMemoryStore()
	acme, err := store.CreateClient(ctx, leads.CreateClientParams{Slug: "acme", Name: "Acme"})
	require.NoError(t, err)
	beta, err := store.CreateClient(ctx, leads.CreateClientParams{Slug: "beta", Name: "Beta"})
	require.NoError(t, err)
	email := "jane@example.com"
	lead, err := store.CreateLead(ctx, leads.CreateLeadParams{ClientID: acme.ID, Name: "Jane", Email: &email, Source: leads.SourceWebhookForm})
	require.NoError(t, err)

	bus := events.NewInMemoryBus(logger.Nop())
	activity.New(store, logger.Nop()).RegisterHandlers(bus)

	engine := gin.New()
	v1 := engine.Group("/api/v1")
	protected := v1.Group("")
	protected.Use(httpkit.AuthRequired(jwtConfig{}))
	NewModule(store, bus, validator.New(), logger.Nop()).RegisterRoutes(&apphttp.RouterContext{
		Engine:    engine,
		V1:        v1,
		Protected: protected,
	})

	return fixture{engine: engine, store: store, bus: bus, acme: acme, beta: beta, lead: lead}
}

func (f fixture) do(t *testing.T, method, path string, clientID uuid.UUID) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if clientID != uuid.Nil {
		req.Header.Set("Authorization", "Bearer "+accessToken(t, clientID))
	}
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	return rec
}

func (f fixture) post(t *testing.T, path, body string, clientID uuid.UUID) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken(t, clientID))
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	return rec
}

func TestCreateLeadIsManualAndTenantScoped(t *testing.T) {
	f := newFixture(t)

	rec := f.post(t, "/api/v1/leads", `{"name":" Sam Ortiz ","phone":"(201) 555-0123","message":"Met at the home show"}`, f.beta.ID)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created transport.LeadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "Sam Ortiz", created.Name)
	assert.Equal(t, string(leads.SourceManual), created.Source)
	require.NotNil(t, created.Phone)
	assert.Equal(t, "+12015550123", *created.Phone)
	assert.Nil(t, created.Email)
	assert.Zero(t, created.FollowupsSent)
	f.bus.Wait()

	stored, err := f.store.GetLead(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, f.beta.ID, stored.ClientID)

	items, err := f.store.ListLeads(context.Background(), f.acme.ID, 0)
	require.NoError(t, err)
	assert.Len(t, items, 1, "other tenants are untouched")

	rec = f.do(t, http.MethodGet, "/api/v1/leads/"+created.ID.String()+"/activity", f.beta.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	var timeline transport.ActivityListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &timeline))
	require.Len(t, timeline.Items, 1)
	assert.Equal(t, string(leads.ActivityIngested), timeline.Items[0].Kind)
}

func TestCreateLeadValidation(t *testing.T) {
	f := newFixture(t)

	cases := map[string]string{
		"no contact":     `{"name":"Sam"}`,
		"no name":        `{"email":"sam@example.com"}`,
		"bad email":      `{"name":"Sam","email":"sam-at-example"}`,
		"malformed json": `{"name":`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := f.post(t, "/api/v1/leads", body, f.acme.ID)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}

	rec := f.post(t, "/api/v1/leads", `{"name":"Sam","email":"Sam@Example.com"}`, f.acme.ID)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created transport.LeadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotNil(t, created.Email)
	assert.Equal(t, "sam@example.com", *created.Email)
}

func TestListLeadsRequiresToken(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/v1/leads", uuid.Nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListLeadsIsTenantScoped(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/leads", f.acme.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp transport.LeadListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 1)
	assert.Equal(t, f.lead.ID, resp.Items[0].ID)

	rec = f.do(t, http.MethodGet, "/api/v1/leads", f.beta.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Items)
}

func TestListLeadsRejectsBadLimit(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/v1/leads?limit=100000", f.acme.ID)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMarkRecoveredStopsFollowupsAndWritesTimeline(t *testing.T) {
	f := newFixture(t)
	path := "/api/v1/leads/" + f.lead.ID.String() + "/recovered"

	rec := f.do(t, http.MethodPost, path, f.beta.ID)
	assert.Equal(t, http.StatusNotFound, rec.Code, "another tenant cannot recover the lead")

	rec = f.do(t, http.MethodPost, path, f.acme.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	f.bus.Wait()

	lead, err := f.store.GetLead(context.Background(), f.lead.ID)
	require.NoError(t, err)
	assert.True(t, lead.Recovered)

	won, err := f.store.RecordFollowupSent(context.Background(), f.lead.ID, 0, time.Now())
	require.NoError(t, err)
	assert.False(t, won)

	rec = f.do(t, http.MethodGet, "/api/v1/leads/"+f.lead.ID.String()+"/activity", f.acme.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	var timeline transport.ActivityListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &timeline))
	require.Len(t, timeline.Items, 1)
	assert.Equal(t, string(leads.ActivityRecovered), timeline.Items[0].Kind)
}

func TestActivityInvalidID(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/v1/leads/not-a-uuid/activity", f.acme.ID)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
