// Package admin provides the operator endpoints used to trigger cycles
// manually, provision tenants and seed test leads. The routes only exist when
// test endpoints are enabled.
package admin

import (
	"leadfollowup_backend/internal/events"
	apphttp "leadfollowup_backend/internal/http"
	"leadfollowup_backend/internal/scheduler"
	"leadfollowup_backend/platform/logger"
	"leadfollowup_backend/platform/validator"
)

// Module is the operator module implementing http.Module.
type Module struct {
	handler *Handler
}

// NewModule creates the admin module. enqueuer may be nil, in which case
// every trigger runs inline.
func NewModule(store Store, runner *scheduler.Runner, enqueuer scheduler.Enqueuer, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	return &Module{
		handler: NewHandler(NewService(store, bus), runner, enqueuer, val, log),
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "admin"
}

// RegisterRoutes mounts operator routes when the admin group exists.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	if ctx.Admin == nil {
		return
	}

	ctx.Admin.POST("/followups/run", m.handler.HandleRunFollowups)
	ctx.Admin.POST("/followups/run/:clientSlug", m.handler.HandleRunClientFollowups)
	ctx.Admin.POST("/mailbox/poll", m.handler.HandlePollMailbox)
	ctx.Admin.POST("/clients", m.handler.HandleCreateClient)
	ctx.Admin.POST("/clients/:clientSlug/aged-lead", m.handler.HandleSeedAgedLead)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
