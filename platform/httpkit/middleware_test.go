package httpkit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"leadfollowup_backend/platform/apperr"
	"leadfollowup_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

type testJWTConfig struct{ secret string }

func (c testJWTConfig) GetJWTAccessSecret() string { return c.secret }

func init() {
	gin.SetMode(gin.TestMode)
}

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestAuthRequiredSetsIdentity(t *testing.T) {
	userID := uuid.New()
	clientID := uuid.New()
	token := signToken(t, "s3cret", jwt.MapClaims{
		"sub":       userID.String(),
		"tenant_id": clientID.String(),
		"type":      "access",
		"exp":       time.Now().Add(time.Hour).Unix(),
	})

	engine := gin.New()
	engine.GET("/me", AuthRequired(testJWTConfig{secret: "s3cret"}), func(c *gin.Context) {
		id, ok := GetIdentity(c)
		require.True(t, ok)
		assert.Equal(t, userID, id.UserID)
		assert.Equal(t, clientID, id.ClientID)
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAuthRequiredRejectsRefreshTokensAndMissingTenant(t *testing.T) {
	engine := gin.New()
	engine.GET("/me", AuthRequired(testJWTConfig{secret: "s3cret"}), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	for name, claims := range map[string]jwt.MapClaims{
		"refresh type":   {"sub": uuid.NewString(), "tenant_id": uuid.NewString(), "type": "refresh"},
		"missing tenant": {"sub": uuid.NewString(), "type": "access"},
	} {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, "s3cret", claims))
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, name)
	}
}

func TestAdminKeyRequired(t *testing.T) {
	engine := gin.New()
	engine.POST("/run", AdminKeyRequired("op-key", logger.Nop()), func(c *gin.Context) {
		c.Status(http.StatusAccepted)
	})

	req := httptest.NewRequest(http.MethodPost, "/run", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/run", nil)
	req.Header.Set(AdminKeyHeader, "op-key")
	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestRateLimitBlocksAfterBurst(t *testing.T) {
	limiter := NewIPRateLimiter(rate.Limit(0.001), 2, logger.Nop())
	engine := gin.New()
	engine.POST("/hook", limiter.RateLimit(), func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/hook", nil))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestHandleErrorMapsKinds(t *testing.T) {
	engine := gin.New()
	engine.GET("/missing", func(c *gin.Context) {
		HandleError(c, apperr.NotFound("client not found"))
	})
	engine.GET("/boom", func(c *gin.Context) {
		HandleError(c, assert.AnError)
	})

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"client not found"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
