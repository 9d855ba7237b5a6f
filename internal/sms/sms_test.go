package sms

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"leadfollowup_backend/platform/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientSendSMSPostsForm(t *testing.T) {
	var form url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "AC123", user)
		assert.Equal(t, "token", pass)
		assert.Equal(t, "/Accounts/AC123/Messages.json", r.URL.Path)
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client := NewClient("AC123", "token", logger.Nop())
	client.baseURL = srv.URL

	err := client.SendSMS(context.Background(), "+12015550100", "(201) 555-0123", "Hi Jane")
	require.NoError(t, err)
	assert.Equal(t, "+12015550123", form.Get("To"))
	assert.Equal(t, "+12015550100", form.Get("From"))
	assert.Equal(t, "Hi Jane", form.Get("Body"))
}

func TestClientSendSMSFlagsUnusableFromNumber(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":21606,"message":"The From phone number is not a valid, SMS-capable inbound phone number"}`))
	}))
	defer srv.Close()

	client := NewClient("AC123", "token", logger.Nop())
	client.baseURL = srv.URL

	err := client.SendSMS(context.Background(), "+12015550100", "+12015550123", "Hi")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMisconfiguredSender))
}

func TestClientSendSMSRejectsInvalidRecipient(t *testing.T) {
	client := NewClient("AC123", "token", logger.Nop())
	err := client.SendSMS(context.Background(), "+12015550100", "not a number", "Hi")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrMisconfiguredSender))
}

func TestNilClientIsNoop(t *testing.T) {
	var client *Client
	assert.NoError(t, client.SendSMS(context.Background(), "a", "b", "c"))
}

func TestVerifySignature(t *testing.T) {
	params := url.Values{
		"From":       {"+12015550123"},
		"To":         {"+12015550100"},
		"Body":       {"Need a quote"},
		"MessageSid": {"SM123"},
	}
	fullURL := "https://leads.example.com/api/v1/webhook/sms"
	sig := ComputeSignature("token", fullURL, params)

	assert.True(t, VerifySignature("token", fullURL, params, sig))
	assert.False(t, VerifySignature("other", fullURL, params, sig))
	assert.False(t, VerifySignature("token", fullURL+"?x=1", params, sig))

	params.Set("Body", "tampered")
	assert.False(t, VerifySignature("token", fullURL, params, sig))
	assert.False(t, VerifySignature("token", fullURL, params, ""))
}
