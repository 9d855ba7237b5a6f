// Package webhook provides the public lead capture endpoints: the web form
// webhook and the inbound SMS callback.
package webhook

import (
	apphttp "leadfollowup_backend/internal/http"
	"leadfollowup_backend/platform/config"
	"leadfollowup_backend/platform/logger"
)

// Module is the webhook bounded context module implementing http.Module.
type Module struct {
	handler *Handler
	cfg     config.SMSConfig
	log     *logger.Logger
}

// NewModule creates the webhook module.
func NewModule(ingester Ingester, cfg config.SMSConfig, log *logger.Logger) *Module {
	return &Module{
		handler: NewHandler(ingester, log),
		cfg:     cfg,
		log:     log,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "webhook"
}

// RegisterRoutes mounts webhook routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.V1.Group("/webhook")
	if ctx.WebhookRateLimiter != nil {
		group.Use(ctx.WebhookRateLimiter.RateLimit())
	}

	group.POST("/lead/:clientSlug", m.handler.HandleLeadSubmission)

	if m.cfg.GetSMSVerifySignature() {
		group.POST("/sms", SMSSignatureMiddleware(m.cfg.GetTwilioAuthToken(), m.cfg.GetPublicBaseURL(), m.log), m.handler.HandleInboundSMS)
	} else {
		group.POST("/sms", m.handler.HandleInboundSMS)
	}
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
