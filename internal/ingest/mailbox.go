package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strconv"
	"strings"

	"leadfollowup_backend/internal/archive"
	"leadfollowup_backend/internal/classifier"
	"leadfollowup_backend/internal/leads"
	"leadfollowup_backend/internal/mailbox"
	"leadfollowup_backend/platform/phone"
	"leadfollowup_backend/platform/sanitize"
)

const (
	unknownSenderAddress = "unknown@email.invalid"
	maxSenderNameLength  = 200
	maxSubjectLength     = 500
)

// PollReport summarises one mailbox tick.
type PollReport struct {
	Fetched      int `json:"fetched"`
	AlreadySeen  int `json:"alreadySeen"`
	NotLeads     int `json:"notLeads"`
	Created      int `json:"created"`
	Deduplicated int `json:"deduplicated"`
}

// MailboxPoller runs the two-phase mailbox tick.
type MailboxPoller struct {
	svc        *Service
	mailbox    mailbox.Mailbox
	classifier classifier.Classifier
}

func NewMailboxPoller(svc *Service, mb mailbox.Mailbox, cls classifier.Classifier) *MailboxPoller {
	if cls == nil {
		cls = classifier.AcceptAll{}
	}
	return &MailboxPoller{svc: svc, mailbox: mb, classifier: cls}
}

type parsedMessage struct {
	uid        int
	externalID string
	name       string
	address    string
	phone      string
	subject    string
	body       string
	verdict    classifier.Verdict
}

// Poll fetches unread mail, classifies all of it, and only then creates
// leads. Any mailbox or classifier error during the first phase abandons the
// tick without side effects. In the second phase each message is created,
// marked processed and marked seen, in that order; a store error stops the
// tick before the failing message is marked. Messages already processed but
// still unread are marked seen once the first phase succeeds.
func (p *MailboxPoller) Poll(ctx context.Context) (PollReport, error) {
	var report PollReport
	log := p.svc.log.WithContext(ctx)

	client, err := p.svc.routeClient(ctx, leads.ChannelEmail, p.mailbox.Address())
	if err != nil {
		return report, err
	}

	unread, err := p.mailbox.FetchUnread(ctx)
	if err != nil {
		return report, fmt.Errorf("%w: fetch unread: %w", ErrUnreachable, err)
	}
	report.Fetched = len(unread)

	batch := make([]parsedMessage, 0, len(unread))
	var stale []int
	for _, msg := range unread {
		parsed := parseMessage(msg)
		processed, err := p.svc.store.IsMessageProcessed(ctx, leads.ChannelEmail, parsed.externalID)
		if err != nil {
			return report, fmt.Errorf("check processed %s: %w", parsed.externalID, err)
		}
		if processed {
			report.AlreadySeen++
			stale = append(stale, parsed.uid)
			continue
		}

		verdict, err := p.classifier.Classify(ctx, classifier.Input{
			FromName:    parsed.name,
			FromAddress: parsed.address,
			Subject:     parsed.subject,
			Body:        parsed.body,
		})
		if err != nil {
			return report, fmt.Errorf("%w: classify %s: %w", ErrUnreachable, parsed.externalID, err)
		}
		parsed.verdict = verdict
		batch = append(batch, parsed)
	}

	// Processed but still unread: an earlier tick failed to flag it.
	for _, uid := range stale {
		if err := p.mailbox.MarkSeen(ctx, uid); err != nil {
			log.Warn("failed to mark processed message seen", "uid", uid, "error", err)
		}
	}

	for _, msg := range batch {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}

		if msg.verdict == classifier.VerdictLead {
			result, err := p.svc.createLead(ctx, client, leads.CreateLeadParams{
				Name:        msg.name,
				Email:       leads.StringPtr(msg.address),
				Phone:       leads.StringPtr(msg.phone),
				Source:      leads.SourceEmail,
				InquiryText: leads.StringPtr(msg.body),
				DedupKey:    leads.StringPtr(msg.externalID),
			})
			if err != nil {
				return report, err
			}
			if result.Deduplicated {
				report.Deduplicated++
			} else {
				report.Created++
				p.svc.archiveInquiry(ctx, archive.Inquiry{
					LeadID:     result.Lead.ID,
					ClientSlug: client.Slug,
					Channel:    string(leads.ChannelEmail),
					ExternalID: msg.externalID,
					From:       msg.address,
					Subject:    msg.subject,
					Body:       msg.body,
					ReceivedAt: p.svc.now(),
				})
			}
		} else {
			report.NotLeads++
			log.Debug("mailbox message is not a lead", "message_id", msg.externalID)
		}

		if _, err := p.svc.store.MarkMessageProcessed(ctx, leads.ChannelEmail, msg.externalID); err != nil {
			return report, fmt.Errorf("mark processed %s: %w", msg.externalID, err)
		}
		if err := p.mailbox.MarkSeen(ctx, msg.uid); err != nil {
			log.Warn("failed to mark message seen", "uid", msg.uid, "error", err)
		}
	}

	log.Info("mailbox poll finished",
		"fetched", report.Fetched,
		"created", report.Created,
		"not_leads", report.NotLeads,
		"already_seen", report.AlreadySeen,
	)
	return report, nil
}

func parseMessage(msg mailbox.Message) parsedMessage {
	externalID := strings.TrimSpace(msg.MessageID)
	if externalID == "" {
		externalID = "uid-" + strconv.Itoa(msg.UID)
	}

	address, name := parseSender(msg.FromAddress, msg.FromName)
	body := combineBody(msg.Text, msg.HTML)

	return parsedMessage{
		uid:        msg.UID,
		externalID: externalID,
		name:       name,
		address:    address,
		phone:      sanitize.Truncate(phone.NormalizeE164(phone.ExtractFromText(body)), 50),
		subject:    sanitize.Truncate(strings.TrimSpace(msg.Subject), maxSubjectLength),
		body:       sanitize.Truncate(strings.TrimSpace(body), maxInquiryLength),
	}
}

// parseSender validates the sender address and derives a display name,
// falling back to the local part of the address.
func parseSender(rawAddress, rawName string) (string, string) {
	address := ""
	if parsed, err := mail.ParseAddress(strings.TrimSpace(rawAddress)); err == nil {
		address = strings.ToLower(parsed.Address)
		if rawName == "" {
			rawName = parsed.Name
		}
	}

	name := strings.Trim(strings.TrimSpace(rawName), `"`)
	if name == "" && address != "" {
		name, _, _ = strings.Cut(address, "@")
	}
	if name == "" {
		name = "Unknown"
	}
	if address == "" {
		address = unknownSenderAddress
	}
	return address, sanitize.Truncate(name, maxSenderNameLength)
}

// combineBody joins the plain text part and the text extracted from HTML so
// the classifier sees content that only exists in one of them.
func combineBody(text, html string) string {
	plain := strings.TrimSpace(text)
	fromHTML := strings.TrimSpace(sanitize.HTMLToText(html))
	switch {
	case plain != "" && fromHTML != "":
		return plain + " " + fromHTML
	case plain != "":
		return plain
	default:
		return fromHTML
	}
}

// IsUnreachable reports whether err abandoned a tick because a collaborator failed.
func IsUnreachable(err error) bool {
	return errors.Is(err, ErrUnreachable) || errors.Is(err, mailbox.ErrTimeout)
}
