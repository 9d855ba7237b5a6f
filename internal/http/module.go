// Package http provides HTTP server infrastructure including the Module interface
// that all domain modules must implement for route registration.
package http

import (
	"leadfollowup_backend/platform/config"
	"leadfollowup_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// Module represents a bounded context that can register its HTTP routes.
type Module interface {
	// Name returns the module's identifier for logging purposes.
	Name() string
	// RegisterRoutes mounts the module's routes on the provided router context.
	RegisterRoutes(ctx *RouterContext)
}

// RouterContext provides shared dependencies for module route registration.
type RouterContext struct {
	// Engine is the root Gin engine.
	Engine *gin.Engine
	// V1 is the public /api/v1 route group.
	V1 *gin.RouterGroup
	// Protected is the tenant-authenticated route group under /api/v1.
	Protected *gin.RouterGroup
	// Admin is the operator route group under /api/v1/admin. It is nil when
	// test endpoints are disabled, and modules must not mount admin routes then.
	Admin *gin.RouterGroup
	// Config is the JWT configuration for auth middleware.
	Config config.JWTConfig
	// WebhookRateLimiter is the per-IP limiter for public webhooks.
	WebhookRateLimiter *httpkit.IPRateLimiter
}
