package admin

import (
	"errors"
	"net/http"
	"time"

	"leadfollowup_backend/internal/ingest"
	"leadfollowup_backend/internal/leads"
	"leadfollowup_backend/internal/scheduler"
	"leadfollowup_backend/platform/apperr"
	"leadfollowup_backend/platform/httpkit"
	"leadfollowup_backend/platform/logger"
	"leadfollowup_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	errInvalidRequest = "invalid request body"
	errValidation     = "validation error"
)

// Handler serves the operator endpoints.
type Handler struct {
	svc      *Service
	runner   *scheduler.Runner
	enqueuer scheduler.Enqueuer
	val      *validator.Validator
	log      *logger.Logger
}

func NewHandler(svc *Service, runner *scheduler.Runner, enqueuer scheduler.Enqueuer, val *validator.Validator, log *logger.Logger) *Handler {
	return &Handler{svc: svc, runner: runner, enqueuer: enqueuer, val: val, log: log}
}

// TaskResponse is returned when a trigger is queued instead of run inline.
type TaskResponse struct {
	TaskID string `json:"taskId"`
	Status string `json:"status"`
}

// wantsAsync reports whether the caller asked for a queued run and a queue is
// available. Without a queue every trigger runs inline.
func (h *Handler) wantsAsync(c *gin.Context) bool {
	return h.enqueuer != nil && c.Query("async") == "true"
}

// HandleRunFollowups runs a sweep over every client.
// POST /api/v1/admin/followups/run
func (h *Handler) HandleRunFollowups(c *gin.Context) {
	ctx := c.Request.Context()
	if h.wantsAsync(c) {
		taskID, err := h.enqueuer.EnqueueSweep(ctx)
		h.respondQueued(c, taskID, err)
		return
	}

	report, err := h.runner.RunSweep(ctx)
	if err != nil {
		httpkit.HandleError(c, apperr.Unavailable("follow-up sweep aborted", err))
		return
	}
	h.log.AdminEvent("followups.run", c.ClientIP(), true, "")
	httpkit.OK(c, report)
}

// HandleRunClientFollowups runs a sweep over one client.
// POST /api/v1/admin/followups/run/:clientSlug
func (h *Handler) HandleRunClientFollowups(c *gin.Context) {
	ctx := c.Request.Context()
	slug := c.Param("clientSlug")
	if h.wantsAsync(c) {
		taskID, err := h.enqueuer.EnqueueSweepClient(ctx, slug)
		h.respondQueued(c, taskID, err)
		return
	}

	report, err := h.runner.RunSweepClient(ctx, slug)
	if errors.Is(err, leads.ErrNotFound) {
		httpkit.HandleError(c, apperr.NotFound("client not found"))
		return
	}
	if httpkit.HandleError(c, err) {
		return
	}
	h.log.AdminEvent("followups.run_client", c.ClientIP(), true, "")
	httpkit.OK(c, report)
}

// HandlePollMailbox runs one mailbox tick.
// POST /api/v1/admin/mailbox/poll
func (h *Handler) HandlePollMailbox(c *gin.Context) {
	ctx := c.Request.Context()
	if !h.runner.PollingEnabled() {
		httpkit.HandleError(c, apperr.Conflict(scheduler.ErrMailboxDisabled.Error()))
		return
	}
	if h.wantsAsync(c) {
		taskID, err := h.enqueuer.EnqueueMailboxPoll(ctx)
		h.respondQueued(c, taskID, err)
		return
	}

	report, err := h.runner.RunMailboxPoll(ctx)
	if ingest.IsUnreachable(err) {
		httpkit.HandleError(c, apperr.Unavailable("mailbox or classifier unreachable", err))
		return
	}
	if httpkit.HandleError(c, err) {
		return
	}
	h.log.AdminEvent("mailbox.poll", c.ClientIP(), true, "")
	httpkit.OK(c, report)
}

func (h *Handler) respondQueued(c *gin.Context, taskID string, err error) {
	if err != nil {
		httpkit.HandleError(c, apperr.Unavailable("trigger queue unavailable", err))
		return
	}
	httpkit.JSON(c, http.StatusAccepted, TaskResponse{TaskID: taskID, Status: "queued"})
}

// CreateClientRequest provisions a tenant.
type CreateClientRequest struct {
	Slug        string     `json:"slug" validate:"required,slug"`
	Name        string     `json:"name" validate:"required,min=1,max=200"`
	OwnerUserID *uuid.UUID `json:"ownerUserId"`
}

// ClientResponse is the public view of a client.
type ClientResponse struct {
	ID          uuid.UUID  `json:"id"`
	Slug        string     `json:"slug"`
	Name        string     `json:"name"`
	OwnerUserID *uuid.UUID `json:"ownerUserId,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// HandleCreateClient provisions a tenant.
// POST /api/v1/admin/clients
func (h *Handler) HandleCreateClient(c *gin.Context) {
	var req CreateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, errInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, errValidation, err.Error())
		return
	}

	client, err := h.svc.ProvisionClient(c.Request.Context(), req.Slug, req.Name, req.OwnerUserID)
	if httpkit.HandleError(c, err) {
		return
	}
	h.log.AdminEvent("clients.create", c.ClientIP(), true, "")
	httpkit.JSON(c, http.StatusCreated, ClientResponse{
		ID:          client.ID,
		Slug:        client.Slug,
		Name:        client.Name,
		OwnerUserID: client.OwnerUserID,
		CreatedAt:   client.CreatedAt,
	})
}

// AgedLeadRequest seeds a backdated lead.
type AgedLeadRequest struct {
	Name   string `json:"name" validate:"required,max=200"`
	Email  string `json:"email" validate:"omitempty,email"`
	Phone  string `json:"phone" validate:"omitempty,max=50"`
	Source string `json:"source" validate:"omitempty,oneof=manual webhook_form email sms"`
	Hours  int    `json:"hours" validate:"omitempty,min=0,max=2160"`
}

// LeadResponse is the operator view of a seeded lead.
type LeadResponse struct {
	ID        uuid.UUID `json:"id"`
	ClientID  uuid.UUID `json:"clientId"`
	Name      string    `json:"name"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"createdAt"`
}

// HandleSeedAgedLead inserts a lead created hours ago (default 25).
// POST /api/v1/admin/clients/:clientSlug/aged-lead
func (h *Handler) HandleSeedAgedLead(c *gin.Context) {
	var req AgedLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, errInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, errValidation, err.Error())
		return
	}

	lead, err := h.svc.SeedAgedLead(c.Request.Context(), c.Param("clientSlug"), AgedLeadParams{
		Name:   req.Name,
		Email:  req.Email,
		Phone:  req.Phone,
		Source: leads.Source(req.Source),
		Hours:  req.Hours,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, LeadResponse{
		ID:        lead.ID,
		ClientID:  lead.ClientID,
		Name:      lead.Name,
		Source:    string(lead.Source),
		CreatedAt: lead.CreatedAt,
	})
}
