package handler

import (
	"leadfollowup_backend/internal/events"
	apphttp "leadfollowup_backend/internal/http"
	"leadfollowup_backend/internal/leads/management"
	"leadfollowup_backend/platform/logger"
	"leadfollowup_backend/platform/validator"
)

// Module is the tenant-facing leads module implementing http.Module.
type Module struct {
	handler *Handler
}

// NewModule creates the leads module on top of the lead store.
func NewModule(repo management.Repository, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	return &Module{
		handler: New(management.New(repo, bus, log), val),
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// RegisterRoutes mounts the tenant lead routes behind authentication.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/leads"))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
