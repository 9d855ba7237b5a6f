package ingest

import (
	"context"
	"strings"

	"leadfollowup_backend/internal/archive"
	"leadfollowup_backend/internal/leads"
	"leadfollowup_backend/platform/apperr"
	"leadfollowup_backend/platform/phone"
)

// WebhookSubmission is a web form submission.
type WebhookSubmission struct {
	Name    string `json:"name" validate:"required,max=200"`
	Email   string `json:"email" validate:"required,email,max=254"`
	Phone   string `json:"phone" validate:"omitempty,max=50"`
	Source  string `json:"source" validate:"omitempty,max=100"`
	Message string `json:"message" validate:"omitempty,max=10000"`
}

// IngestWebhook creates a lead for the client named by slug. Form leads carry
// no dedup key, so every accepted submission creates a new lead.
func (s *Service) IngestWebhook(ctx context.Context, slug string, in WebhookSubmission) (Result, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)
	in.Source = strings.TrimSpace(in.Source)

	if err := s.val.Struct(in); err != nil {
		return Result{}, apperr.Validation("invalid lead submission").WithDetails(err.Error())
	}

	client, err := s.clientBySlug(ctx, slug)
	if err != nil {
		return Result{}, err
	}

	normalizedPhone := phone.NormalizeE164(in.Phone)
	source := leads.SourceWebhookForm
	if parsed, ok := leads.ParseSource(in.Source); ok {
		source = parsed
	}
	// An SMS lead without a number could never be followed up.
	if source == leads.SourceSMS && normalizedPhone == "" {
		source = leads.SourceWebhookForm
	}

	params := leads.CreateLeadParams{
		Name:        in.Name,
		Email:       leads.StringPtr(in.Email),
		Phone:       leads.StringPtr(normalizedPhone),
		Source:      source,
		SourceLabel: leads.StringPtr(in.Source),
		InquiryText: leads.StringPtr(truncateInquiry(in.Message)),
	}
	result, err := s.createLead(ctx, client, params)
	if err != nil {
		return Result{}, err
	}

	s.archiveInquiry(ctx, archive.Inquiry{
		LeadID:     result.Lead.ID,
		ClientSlug: client.Slug,
		Channel:    string(leads.SourceWebhookForm),
		From:       in.Email,
		Body:       deref(params.InquiryText),
		ReceivedAt: s.now(),
	})
	return result, nil
}
