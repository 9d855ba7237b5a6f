package ingest

import (
	"context"
	"strings"

	"leadfollowup_backend/internal/archive"
	"leadfollowup_backend/internal/leads"
	"leadfollowup_backend/platform/apperr"
	"leadfollowup_backend/platform/phone"
	"leadfollowup_backend/platform/sanitize"
)

// SMSLeadName is the placeholder name for leads that texted in.
const SMSLeadName = "SMS Lead"

// InboundSMS is a provider callback for one inbound text.
type InboundSMS struct {
	From       string
	To         string
	Body       string
	MessageSID string
}

// IngestSMS creates a lead for an inbound text. A repeated MessageSid is
// reported as deduplicated without creating a second lead. A claimed
// MessageSid whose lead insert fails is not retried.
func (s *Service) IngestSMS(ctx context.Context, in InboundSMS) (Result, error) {
	from := phone.NormalizeE164(in.From)
	if from == "" {
		return Result{}, apperr.Validation("missing sender number")
	}

	client, err := s.routeClient(ctx, leads.ChannelSMS, in.To)
	if err != nil {
		return Result{}, err
	}

	// The SID is claimed before the lead exists so concurrent provider
	// retries cannot both create one.
	messageSID := strings.TrimSpace(in.MessageSID)
	if messageSID != "" {
		claimed, err := s.store.MarkMessageProcessed(ctx, leads.ChannelSMS, messageSID)
		if err != nil {
			return Result{}, err
		}
		if !claimed {
			return Result{Deduplicated: true, Reason: "message already processed"}, nil
		}
	}

	body := sanitize.Truncate(strings.TrimSpace(in.Body), maxInquiryLength)
	result, err := s.createLead(ctx, client, leads.CreateLeadParams{
		Name:        SMSLeadName,
		Phone:       leads.StringPtr(from),
		Source:      leads.SourceSMS,
		InquiryText: leads.StringPtr(body),
	})
	if err != nil {
		if messageSID != "" {
			s.log.WithContext(ctx).Error("sms claimed but lead not created", "message_sid", messageSID, "error", err)
		}
		return Result{}, err
	}

	s.archiveInquiry(ctx, archive.Inquiry{
		LeadID:     result.Lead.ID,
		ClientSlug: client.Slug,
		Channel:    string(leads.ChannelSMS),
		ExternalID: messageSID,
		From:       from,
		Body:       body,
		ReceivedAt: s.now(),
	})
	return result, nil
}

func truncateInquiry(text string) string {
	return sanitize.Truncate(strings.TrimSpace(text), maxInquiryLength)
}
