// Package sms sends follow-up text messages and authenticates inbound
// provider callbacks.
package sms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"leadfollowup_backend/platform/config"
	"leadfollowup_backend/platform/logger"
	"leadfollowup_backend/platform/phone"
)

const twilioBaseURL = "https://api.twilio.com/2010-04-01"

// ErrMisconfiguredSender is returned when the provider rejects the sending number.
var ErrMisconfiguredSender = errors.New("sms sender rejected by provider")

// Twilio error codes that mean the From number cannot be used.
var twilioSenderErrorCodes = map[int]bool{
	21212: true, // invalid From number
	21606: true, // From number not SMS-capable
	21659: true, // From number not owned by the account
}

// Sender delivers a single text message.
type Sender interface {
	SendSMS(ctx context.Context, from, to, body string) error
}

// NoopSender drops every message.
type NoopSender struct{}

func (NoopSender) SendSMS(context.Context, string, string, string) error { return nil }

// Client is a minimal Twilio Messages API client.
type Client struct {
	baseURL    string
	accountSID string
	authToken  string
	http       *http.Client
	log        *logger.Logger
}

type twilioError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewSender returns a Twilio client when credentials are configured and a
// NoopSender otherwise.
func NewSender(cfg config.SMSConfig, log *logger.Logger) Sender {
	if !cfg.IsSMSEnabled() {
		return NoopSender{}
	}
	return NewClient(cfg.GetTwilioAccountSID(), cfg.GetTwilioAuthToken(), log)
}

func NewClient(accountSID, authToken string, log *logger.Logger) *Client {
	return &Client{
		baseURL:    twilioBaseURL,
		accountSID: accountSID,
		authToken:  authToken,
		http:       &http.Client{Timeout: 10 * time.Second},
		log:        log,
	}
}

func (c *Client) SendSMS(ctx context.Context, from, to, body string) error {
	if c == nil {
		return nil
	}
	if strings.TrimSpace(from) == "" {
		return fmt.Errorf("%w: empty from number", ErrMisconfiguredSender)
	}

	toE164 := phone.NormalizeE164(to)
	if !strings.HasPrefix(toE164, "+") {
		return fmt.Errorf("sms: invalid recipient %q", to)
	}

	form := url.Values{}
	form.Set("From", phone.NormalizeE164(from))
	form.Set("To", toE164)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", c.baseURL, url.PathEscape(c.accountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("twilio request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var apiErr twilioError
		if json.Unmarshal(data, &apiErr) == nil && twilioSenderErrorCodes[apiErr.Code] {
			return fmt.Errorf("%w: twilio %d: %s", ErrMisconfiguredSender, apiErr.Code, apiErr.Message)
		}
		return fmt.Errorf("twilio returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	c.log.Info("sms sent via twilio", "to", toE164)
	return nil
}
