package classifier

import (
	"context"
	"strings"
)

// Rules is a keyword pre-filter. Exclusions always win over lead codewords.
type Rules struct {
	ExcludeTerms          []string
	ExcludeSenderPatterns []string
	Codewords             []string
}

// DefaultRules returns the built-in term lists.
func DefaultRules() Rules {
	return Rules{
		ExcludeTerms:          defaultExcludeTerms,
		ExcludeSenderPatterns: defaultExcludeSenderPatterns,
		Codewords:             defaultCodewords,
	}
}

// Evaluate returns the verdict and whether the rules were conclusive.
func (r Rules) Evaluate(in Input) (Verdict, bool) {
	if r.senderExcluded(in.FromAddress) {
		return VerdictNotLead, true
	}
	combined := strings.ToLower(in.Subject + " " + in.Body)
	if containsAny(combined, r.ExcludeTerms) {
		return VerdictNotLead, true
	}
	if containsAny(combined, r.Codewords) {
		return VerdictLead, true
	}
	return VerdictNotLead, false
}

// Classify treats inconclusive messages as leads.
func (r Rules) Classify(_ context.Context, in Input) (Verdict, error) {
	if verdict, decided := r.Evaluate(in); decided {
		return verdict, nil
	}
	return VerdictLead, nil
}

func (r Rules) senderExcluded(address string) bool {
	addr := strings.ToLower(strings.TrimSpace(address))
	local, _, ok := strings.Cut(addr, "@")
	if !ok || local == "" {
		return true
	}
	return containsAny(addr, r.ExcludeSenderPatterns)
}

func containsAny(haystack string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(haystack, needle) {
			return true
		}
	}
	return false
}

var defaultCodewords = []string{
	"pricing", "quote", "quotation", "cost", "rates", "availability",
	"book", "booking", "schedule", "demo", "consultation", "estimate",
	"proposal", "package", "services", "options", "turnaround time",
	"timeline", "event", "launch", "campaign", "project", "deadline",
	"upcoming", "planned", "this month", "next week",
	"interested in", "looking for", "need help with", "can you provide",
	"would like to know", "do you offer", "are you available",
	"what are your rates", "how much does it cost", "who handles",
	"can we talk",
}

var defaultExcludeTerms = []string{
	"unsubscribe", "newsletter", "spam", "job application", "resume",
	"careers", "support ticket", "complaint", "refund", "cancellation",
	"password reset", "verify your", "confirm your", "click to verify",
	"receipt", "order confirmation", "your order", "order #", "shipped",
	"tracking number", "shipping confirmation", "delivery update",
	"digest", "roundup", "round-up",
	"promo", "promotion", "marketing", "flash sale", "limited time",
	"verification code", "one-time password", "login alert",
	"someone tried", "new sign-in", "security alert", "suspicious activity",
	"no-reply", "noreply", "donotreply", "do not reply", "mailer-daemon",
	"mailing list", "out of office", "out-of-office", "automatic reply",
	"automated", "notification@", "alert@", "bounce@", "welcome to",
	"you signed up", "confirm your email",
	"click here to", "view in browser", "view this email",
	"invitation to connect", "linkedin", "wants to connect",
	"invoice", "payment received", "payment due", "subscription",
	"account update", "terms of service", "privacy policy",
	"manage preferences", "manage subscription", "email preferences",
	"you're receiving this because", "you are receiving this because",
	"update your preferences", "preferences center",
	"remove from list", "sent to you because",
	"meeting invite", "meeting invitation", "calendar invite",
	"invited you to", "you're invited", "rsvp",
	"fwd:", "fwd :",
	"please take our survey", "feedback request",
	"meeting scheduled", "teams meeting",
	"google calendar", "outlook calendar", "add to calendar", "add to your calendar",
}

var defaultExcludeSenderPatterns = []string{
	"no-reply", "noreply", "donotreply", "do-not-reply", "no_reply",
	"notification", "alert", "mailer-daemon",
	"postmaster", "bounce", "auto@", "automated@", "system@",
	"newsletter", "news@", "marketing@", "promo@", "digest@", "mailer@",
	"calendar", "reminders", "invite",
}
