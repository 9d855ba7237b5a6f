package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	apphttp "leadfollowup_backend/internal/http"
	"leadfollowup_backend/platform/httpkit"
	"leadfollowup_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type routerConfig struct {
	testEndpoints bool
}

func (routerConfig) GetHTTPAddr() string            { return ":0" }
func (routerConfig) GetCORSAllowAll() bool          { return false }
func (routerConfig) GetCORSOrigins() []string       { return []string{"http://localhost:4200"} }
func (routerConfig) GetCORSAllowCreds() bool        { return false }
func (routerConfig) GetJWTAccessSecret() string     { return "secret" }
func (routerConfig) GetAdminAPIKey() string         { return "key" }
func (c routerConfig) GetEnableTestEndpoints() bool { return c.testEndpoints }

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

type probeModule struct{}

func (probeModule) Name() string { return "probe" }

func (probeModule) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.V1.GET("/probe", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	if ctx.Admin != nil {
		ctx.Admin.POST("/probe", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	}
}

func newEngine(cfg routerConfig, health apphttp.HealthChecker) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return New(&apphttp.App{
		Config:  cfg,
		Logger:  logger.Nop(),
		Health:  health,
		Modules: []apphttp.Module{probeModule{}},
	})
}

func serve(engine *gin.Engine, method, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestHealthReflectsDatabase(t *testing.T) {
	assert.Equal(t, http.StatusOK, serve(newEngine(routerConfig{}, pinger{}), http.MethodGet, "/api/health", nil).Code)
	assert.Equal(t, http.StatusOK, serve(newEngine(routerConfig{}, nil), http.MethodGet, "/api/health", nil).Code)

	rec := serve(newEngine(routerConfig{}, pinger{err: errors.New("down")}), http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestModulesAreMounted(t *testing.T) {
	rec := serve(newEngine(routerConfig{}, nil), http.MethodGet, "/api/v1/probe", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestAdminGroupOnlyWithTestEndpoints(t *testing.T) {
	rec := serve(newEngine(routerConfig{}, nil), http.MethodPost, "/api/v1/admin/probe", map[string]string{httpkit.AdminKeyHeader: "key"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	engine := newEngine(routerConfig{testEndpoints: true}, nil)
	assert.Equal(t, http.StatusUnauthorized, serve(engine, http.MethodPost, "/api/v1/admin/probe", nil).Code)
	assert.Equal(t, http.StatusNoContent, serve(engine, http.MethodPost, "/api/v1/admin/probe", map[string]string{httpkit.AdminKeyHeader: "key"}).Code)
}
