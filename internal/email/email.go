// Package email delivers follow-up emails through the configured provider.
package email

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"leadfollowup_backend/platform/config"
)

// ErrMisconfiguredSender is returned when the provider rejects the sender
// identity. The message is not retried with another sender.
var ErrMisconfiguredSender = errors.New("email sender rejected by provider")

// Message is a rendered email addressed to one recipient.
type Message struct {
	FromName    string
	FromAddress string
	ReplyTo     string
	To          string
	Subject     string
	HTML        string
	Text        string
}

func (m Message) validate() error {
	if strings.TrimSpace(m.FromAddress) == "" {
		return fmt.Errorf("%w: empty from address", ErrMisconfiguredSender)
	}
	if strings.TrimSpace(m.To) == "" {
		return errors.New("email: empty recipient")
	}
	return nil
}

// Sender delivers a single message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// NoopSender accepts every message without delivering it.
type NoopSender struct{}

func (NoopSender) Send(context.Context, Message) error { return nil }

// NewSender builds the sender selected by EMAIL_PROVIDER.
func NewSender(cfg config.EmailConfig) (Sender, error) {
	switch cfg.GetEmailProvider() {
	case config.EmailProviderSMTP:
		return NewSMTPSender(cfg.GetSMTPHost(), cfg.GetSMTPPort(), cfg.GetSMTPUsername(), cfg.GetSMTPPassword()), nil
	case config.EmailProviderBrevo:
		return NewBrevoSender(cfg.GetBrevoAPIKey()), nil
	case config.EmailProviderNoop, "":
		return NoopSender{}, nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.GetEmailProvider())
	}
}
