package webhook

import (
	"context"
	"errors"
	"net/http"

	"leadfollowup_backend/internal/ingest"
	"leadfollowup_backend/platform/httpkit"
	"leadfollowup_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	errInvalidRequest = "invalid request body"
	maxBodyBytes      = 64 << 10

	emptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`
)

// Ingester creates leads from inbound submissions.
type Ingester interface {
	IngestWebhook(ctx context.Context, slug string, in ingest.WebhookSubmission) (ingest.Result, error)
	IngestSMS(ctx context.Context, in ingest.InboundSMS) (ingest.Result, error)
}

// Handler handles webhook HTTP requests.
type Handler struct {
	ingester Ingester
	log      *logger.Logger
}

// NewHandler creates a new webhook handler.
func NewHandler(ingester Ingester, log *logger.Logger) *Handler {
	return &Handler{ingester: ingester, log: log}
}

// LeadResponse is returned for accepted form submissions.
type LeadResponse struct {
	ID           *uuid.UUID `json:"id"`
	Deduplicated bool       `json:"deduplicated"`
}

// HandleLeadSubmission processes a web form submission.
// POST /api/v1/webhook/lead/:clientSlug
func (h *Handler) HandleLeadSubmission(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)

	var req ingest.WebhookSubmission
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, errInvalidRequest, nil)
		return
	}

	result, err := h.ingester.IngestWebhook(c.Request.Context(), c.Param("clientSlug"), req)
	if httpkit.HandleError(c, err) {
		return
	}

	c.JSON(http.StatusCreated, LeadResponse{ID: leadID(result), Deduplicated: result.Deduplicated})
}

// HandleInboundSMS processes a provider callback for an inbound text.
// POST /api/v1/webhook/sms
// The provider receives an empty TwiML document for every accepted or
// unroutable message so it does not retry.
func (h *Handler) HandleInboundSMS(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)

	in := ingest.InboundSMS{
		From:       c.PostForm("From"),
		To:         c.PostForm("To"),
		Body:       c.PostForm("Body"),
		MessageSID: c.PostForm("MessageSid"),
	}

	result, err := h.ingester.IngestSMS(c.Request.Context(), in)
	switch {
	case errors.Is(err, ingest.ErrNoRoute):
		h.log.WithContext(c.Request.Context()).Warn("inbound sms has no route", "to", in.To)
	case err != nil:
		httpkit.HandleError(c, err)
		return
	case result.Deduplicated:
		h.log.WithContext(c.Request.Context()).Info("duplicate inbound sms ignored", "message_sid", in.MessageSID)
	}

	c.Data(http.StatusOK, "text/xml; charset=utf-8", []byte(emptyTwiML))
}

func leadID(result ingest.Result) *uuid.UUID {
	if result.Lead.ID == uuid.Nil {
		return nil
	}
	id := result.Lead.ID
	return &id
}
