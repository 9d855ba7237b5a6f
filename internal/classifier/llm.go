package classifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"leadfollowup_backend/platform/ai/openaicompat"
	"leadfollowup_backend/platform/sanitize"

	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

const (
	maxPromptSubject = 250
	maxPromptBody    = 600
)

const systemPrompt = `You are a very strict lead classifier for a small business. Your default is NO. When in doubt, say NO.

Say YES only when the email is clearly from a real person who is directly asking the business for something commercial: a quote, pricing, availability, a demo, a booking, or to buy or use the business's product or service.

Always say NO for newsletters, receipts, notifications, verification emails, job applications, support tickets, social network messages, meeting invites, forwards, surveys and anything bulk or automated.

Reply with exactly one word: YES or NO.`

// LLM asks a chat model a yes/no question about the message.
type LLM struct {
	model   model.LLM
	timeout time.Duration
}

func NewLLM(llm model.LLM, timeout time.Duration) *LLM {
	return &LLM{model: llm, timeout: timeout}
}

func (l *LLM) Classify(ctx context.Context, in Input) (Verdict, error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	req := &model.LLMRequest{
		Contents: []*genai.Content{genai.NewContentFromText(buildPrompt(in), genai.RoleUser)},
		Config: &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
			Temperature:       genai.Ptr[float32](0),
			MaxOutputTokens:   5,
		},
	}

	text, err := openaicompat.ResponseText(ctx, l.model, req)
	if err != nil {
		return VerdictNotLead, fmt.Errorf("classifier %s: %w", l.model.Name(), err)
	}
	return parseYesNo(text), nil
}

func buildPrompt(in Input) string {
	from := fmt.Sprintf("%s <%s>", orUnknown(in.FromName), orUnknown(in.FromAddress))
	return fmt.Sprintf("FROM: %s\nSUBJECT: %s\nBODY: %s",
		from,
		sanitize.Truncate(in.Subject, maxPromptSubject),
		sanitize.Truncate(in.Body, maxPromptBody),
	)
}

// parseYesNo reads the first word of the reply. Anything ambiguous is not a lead.
func parseYesNo(text string) Verdict {
	fields := strings.Fields(strings.ToUpper(text))
	if len(fields) == 0 {
		return VerdictNotLead
	}
	word := strings.Trim(fields[0], ".,!:;\"'")
	if word == "YES" || word == "Y" {
		return VerdictLead
	}
	return VerdictNotLead
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "?"
	}
	return s
}
