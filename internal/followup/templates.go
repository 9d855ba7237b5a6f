package followup

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"leadfollowup_backend/internal/leads"
	"leadfollowup_backend/platform/sanitize"
)

//go:embed templates/*.html
var templateFS embed.FS

const fallbackLeadName = "there"

// Template is one follow-up variant for a channel.
type Template struct {
	Channel  leads.Channel
	Sequence int

	subject  string
	heading  string
	variant  string
	htmlFile string
	text     string
	sms      string
}

// Rendered is a message ready for a transport.
type Rendered struct {
	Subject string
	HTML    string
	Text    string
	Body    string
}

type templateData struct {
	Subject     string
	Heading     string
	Variant     string
	LeadName    string
	SenderName  string
	FinalNotice bool
}

var emailTemplates = [leads.MaxFollowups]Template{
	{
		Channel:  leads.ChannelEmail,
		Sequence: 1,
		subject:  "Quick follow-up on your inquiry, {name}!",
		heading:  "Thanks for reaching out!",
		variant:  "first",
		htmlFile: "first.html",
		text: `Hi {name},

I noticed you recently submitted an inquiry, and I wanted to personally follow up to see if you have any questions.

I'd love to help you with whatever you need. Feel free to reply to this email or let me know a good time for a quick call.

Looking forward to hearing from you!

Best regards,
{sender_name}
`,
	},
	{
		Channel:  leads.ChannelEmail,
		Sequence: 2,
		subject:  "Still interested, {name}?",
		heading:  "Just checking in!",
		variant:  "second",
		htmlFile: "second.html",
		text: `Hi {name},

I wanted to follow up on my previous message. I understand you might be busy, but I didn't want you to miss out.

If you're still interested, I'm here to help answer any questions you might have.

Just hit reply and let me know how I can assist!

Best,
{sender_name}
`,
	},
	{
		Channel:  leads.ChannelEmail,
		Sequence: 3,
		subject:  "Last chance to connect, {name}",
		heading:  "One last follow-up",
		variant:  "third",
		htmlFile: "third.html",
		text: `Hi {name},

I've reached out a couple of times and haven't heard back. I completely understand if now isn't the right time.

This will be my last email, but please know that I'm always here if you need anything in the future.

Wishing you all the best!

Take care,
{sender_name}
`,
	},
}

// autoreplyTemplate is the instant acknowledgement sent when a lead arrives.
// It is not part of the follow-up cadence.
var autoreplyTemplate = Template{
	Channel:  leads.ChannelEmail,
	subject:  "We received your inquiry, {name}",
	heading:  "Thanks for reaching out!",
	variant:  "first",
	htmlFile: "autoreply.html",
	text: `Hi {name},

Thanks for getting in touch. We've received your inquiry and will get back to you shortly.

If there's anything you'd like to add in the meantime, just reply to this email.

Talk soon,
{sender_name}
`,
}

var smsTemplates = [leads.MaxFollowups]Template{
	{Channel: leads.ChannelSMS, Sequence: 1, sms: "Hi {name}, just following up on your message. Do you have any questions? Happy to help. {sender_name}"},
	{Channel: leads.ChannelSMS, Sequence: 2, sms: "Hi {name}, checking in. Still here if you need anything. {sender_name}"},
	{Channel: leads.ChannelSMS, Sequence: 3, sms: "Hi {name}, last note from me. Reach out anytime if you'd like to connect. {sender_name}"},
}

// maxSMSLength keeps follow-up texts within two segments.
const maxSMSLength = 320

// SelectTemplate returns the variant for a lead that has already received
// followupsSent follow-ups. Values outside 0..2 are a caller bug and panic.
func SelectTemplate(channel leads.Channel, followupsSent int) Template {
	if followupsSent < 0 || followupsSent >= leads.MaxFollowups {
		panic(fmt.Sprintf("followup: no template for followups_sent=%d", followupsSent))
	}
	if channel == leads.ChannelSMS {
		return smsTemplates[followupsSent]
	}
	return emailTemplates[followupsSent]
}

// AutoreplyTemplate returns the acknowledgement email for a new lead.
func AutoreplyTemplate() Template {
	return autoreplyTemplate
}

// Render fills the template for a lead name and sender name.
func (t Template) Render(leadName, senderName string) (Rendered, error) {
	leadName = strings.TrimSpace(leadName)
	if leadName == "" {
		leadName = fallbackLeadName
	}
	replacer := strings.NewReplacer("{name}", leadName, "{sender_name}", senderName)

	if t.Channel == leads.ChannelSMS {
		return Rendered{Body: sanitize.Truncate(replacer.Replace(t.sms), maxSMSLength)}, nil
	}

	subject := replacer.Replace(t.subject)
	html, err := renderEmailTemplate(t.htmlFile, templateData{
		Subject:     subject,
		Heading:     t.heading,
		Variant:     t.variant,
		LeadName:    leadName,
		SenderName:  senderName,
		FinalNotice: t.Sequence == leads.MaxFollowups,
	})
	if err != nil {
		return Rendered{}, err
	}
	return Rendered{Subject: subject, HTML: html, Text: replacer.Replace(t.text)}, nil
}

func renderEmailTemplate(name string, data any) (string, error) {
	templates := []string{"templates/base.html", "templates/" + name}
	tmpl, err := template.New("base.html").ParseFS(templateFS, templates...)
	if err != nil {
		return "", fmt.Errorf("parse email template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "email", data); err != nil {
		return "", fmt.Errorf("execute email template %s: %w", name, err)
	}
	return buf.String(), nil
}
